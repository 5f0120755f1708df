package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"voxy/feedback"
	"voxy/inject"
	"voxy/log"
	"voxy/recorder"
	"voxy/transcriber"
)

// Workflow outcomes, as logged.
const (
	outcomeOK              = "ok"
	outcomeBusy            = "busy"
	outcomeRecordingError  = "recording_error"
	outcomeNoSpeech        = "no_speech"
	outcomeTranscribeError = "transcription_error"
	outcomeEmptyTranscript = "empty_transcript"
	outcomeInjectError     = "injection_error"
	outcomePanic           = "panic"
	outcomeCancelled       = "cancelled"
)

// App runs the record, transcribe, inject workflow. One workflow runs at a
// time; triggers that arrive while one is running are dropped.
type App struct {
	rec  *recorder.Recorder
	stt  transcriber.Transcriber
	inj  inject.Injector
	sink feedback.Sink

	busy      sync.Mutex
	completed atomic.Int64
}

func NewApp(rec *recorder.Recorder, stt transcriber.Transcriber, inj inject.Injector, sink feedback.Sink) *App {
	return &App{rec: rec, stt: stt, inj: inj, sink: sink}
}

func (a *App) push(m feedback.Message) {
	if a.sink != nil {
		a.sink.Push(m)
	}
}

// Completed is the number of workflows that injected text.
func (a *App) Completed() int { return int(a.completed.Load()) }

// Wait blocks until no workflow is running.
func (a *App) Wait() {
	a.busy.Lock()
	a.busy.Unlock()
}

// StopRecording ends the current capture early.
func (a *App) StopRecording() { a.rec.Stop() }

// Trigger runs one workflow to completion and returns its outcome. It
// returns outcomeBusy immediately if another workflow holds the lock.
func (a *App) Trigger(ctx context.Context) (outcome string) {
	if !a.busy.TryLock() {
		log.Info("workflow: trigger ignored, already processing")
		return outcomeBusy
	}
	start := time.Now()
	audioPath := a.rec.Config().OutputPath

	defer func() {
		if p := recover(); p != nil {
			log.Errorf("workflow: unexpected failure: %v", p)
			a.push(feedback.ShowMessage{Text: feedback.TextUnexpectedError})
			outcome = outcomePanic
		}
		removeTemp(audioPath)
		log.Workflow(outcome, time.Since(start))
		a.busy.Unlock()
	}()

	return a.run(ctx)
}

func (a *App) run(ctx context.Context) string {
	a.push(feedback.StartRecording{})
	// Every path out of the workflow closes the recording phase exactly
	// once so the overlay can hide.
	stopped := false
	stopRecording := func() {
		if !stopped {
			stopped = true
			a.push(feedback.StopRecording{})
		}
	}
	defer stopRecording()

	h := a.rec.Start()
	if h == nil {
		a.push(feedback.ShowMessage{Text: feedback.TextRecordingError})
		return outcomeRecordingError
	}
	if w, ok := a.stt.(transcriber.Warmer); ok {
		go w.Warm(ctx)
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		a.rec.Stop()
	}
	res := h.Wait()

	if res.Err != nil {
		// The recorder has already shown the device or save error.
		log.Errorf("workflow: recording failed: %v", res.Err)
		return outcomeRecordingError
	}
	if !res.Saved() {
		log.Info("workflow: nothing recorded")
		return outcomeNoSpeech
	}
	if ctx.Err() != nil {
		log.Info("workflow: shutting down, recording discarded")
		return outcomeCancelled
	}
	log.Infof("workflow: recorded %s (%s stop)", res.Duration.Round(time.Millisecond), res.Reason)

	text, err := a.transcribe(ctx, res.Path)
	if err != nil && ctx.Err() != nil {
		log.Infof("workflow: transcription abandoned on shutdown: %v", err)
		return outcomeCancelled
	}
	if err != nil {
		if errors.Is(err, transcriber.ErrAudioNotFound) {
			log.Errorf("workflow: recorded file missing: %v", err)
		} else {
			log.Errorf("workflow: transcription failed (%s): %v", transcriber.CauseOf(err), err)
		}
		a.push(feedback.ShowMessage{Text: feedback.TextTranscriptionError})
		return outcomeTranscribeError
	}
	if text == "" {
		log.Info("workflow: transcription is empty")
		return outcomeEmptyTranscript
	}

	a.push(feedback.ShowMessage{Text: feedback.TextInjecting})
	if err := a.inj.Inject(ctx, text); err != nil {
		log.Errorf("workflow: injection failed: %v", err)
		a.push(feedback.ShowMessage{Text: feedback.TextInjectionError})
		return outcomeInjectError
	}
	a.completed.Add(1)
	return outcomeOK
}

// transcribe brackets the service call with the processing messages.
func (a *App) transcribe(ctx context.Context, path string) (string, error) {
	a.push(feedback.StartProcessing{})
	defer a.push(feedback.ProcessingComplete{})
	return a.stt.Transcribe(ctx, path)
}

func removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("workflow: removing %s: %v", path, err)
	}
}

// tempAudioPath names this process's recording file.
func tempAudioPath(dir, id string) string {
	return filepath.Join(dir, "voxy_"+id+".wav")
}
