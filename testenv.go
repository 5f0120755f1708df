package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"voxy/audio"
	"voxy/beep"
	"voxy/config"
	"voxy/feedback"
	"voxy/hotkey"
	"voxy/inject"
	"voxy/log"
	"voxy/recorder"
	"voxy/transcriber"
)

// headlessTranscript stands in for the service when no API key is set.
const headlessTranscript = "headless transcript"

// runHeadless replays wavPath as the microphone and drives the hotkey from
// commands on in. Transcripts are written to out.
func runHeadless(cfg config.Config, wavPath string, in io.Reader, out io.Writer) int {
	beep.Disable()

	fake, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}
	rate, channels := fake.Format()
	rc := recorderConfig(cfg)
	rc.SampleRate, rc.Channels = int(rate), int(channels)

	capture, err := fake.NewCapture(nil, rc.CaptureConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		return 1
	}
	defer capture.Close()

	var stt transcriber.Transcriber
	if cfg.Transcription.APIKey == "" {
		log.Warn("headless: no API key, using a canned transcript")
		stt = transcriber.NewFake(headlessTranscript, nil)
	} else if stt, err = newTranscriber(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ch := feedback.NewChannel(feedback.DefaultCapacity)
	h := &headless{
		app:     NewApp(recorder.New(capture, rc, ch), stt, &inject.Writer{W: out}, ch),
		ch:      ch,
		hk:      hotkey.NewFake(),
		capture: capture.(*audio.FakeCapture),
	}
	if cfg.PushToTalk {
		h.hold = hotkey.DefaultHoldThreshold
	}
	log.SessionStart(stt.Name(), cfg.Transcription.Model, cfg.Hotkey, string(inject.ModeStdout))
	h.run(context.Background(), in)
	log.SessionEnd(h.app.Completed())
	return 0
}

type headless struct {
	app     *App
	ch      *feedback.Channel
	hk      *hotkey.FakeHotkey
	capture *audio.FakeCapture
	hold    time.Duration
}

// run executes the script on in, one command per line:
//
//	KEYDOWN, KEYUP    press or release the hotkey
//	WAIT              block until the next workflow finishes
//	WAIT_AUDIO_DONE   block until the whole WAV has been captured
//	SLEEP <ms>        pause
//	QUIT              stop reading
//
// It returns the outcomes of the workflows that finished.
func (h *headless) run(ctx context.Context, in io.Reader) []string {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go h.ch.Run(ctx, feedback.DefaultPollInterval, feedback.LogDispatch)

	trigger := hotkey.NewTrigger(h.hk, h.hold)
	defer trigger.Close()

	finished := make(chan string, 16)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-trigger.Start():
				go func() { finished <- h.app.Trigger(ctx) }()
			case <-trigger.Stop():
				h.app.StopRecording()
			}
		}
	}()

	var outcomes []string
	scanner := bufio.NewScanner(in)
script:
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "":
		case cmd == "KEYDOWN":
			h.hk.SimKeydown()
		case cmd == "KEYUP":
			h.hk.SimKeyup()
		case cmd == "WAIT":
			outcome := <-finished
			log.Info("headless: workflow " + outcome)
			outcomes = append(outcomes, outcome)
		case cmd == "WAIT_AUDIO_DONE":
			<-h.capture.AudioDone()
		case cmd == "QUIT":
			break script
		case strings.HasPrefix(cmd, "SLEEP "):
			ms, err := strconv.Atoi(strings.TrimSpace(cmd[len("SLEEP "):]))
			if err != nil {
				log.Warnf("headless: bad SLEEP %q", cmd)
				continue
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
		default:
			log.Warnf("headless: unknown command %q", cmd)
		}
	}

	cancel()
	h.app.Wait()
	return outcomes
}
