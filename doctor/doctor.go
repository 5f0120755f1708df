// Package doctor runs the -doctor self checks.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"voxy/audio"
	"voxy/config"
	"voxy/hotkey"
	"voxy/inject"
	"voxy/log"
	"voxy/transcriber"
)

// ErrSkipped marks a check that could not run in this environment.
var ErrSkipped = errors.New("skipped")

const checkTimeout = 30 * time.Second

type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// Run executes checks in order and returns an exit code: 0 when nothing
// failed, 1 otherwise. Skipped checks do not count as failures.
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "voxy doctor - system diagnostics")
	fmt.Fprintln(w, "================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		msg, err := c.Run(cctx)
		cancel()
		switch {
		case errors.Is(err, ErrSkipped):
			fmt.Fprintf(w, "  SKIP: %s\n", strings.TrimPrefix(err.Error(), ErrSkipped.Error()+": "))
		case err != nil:
			failed++
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			log.Warnf("doctor: %s: %v", c.Name, err)
		default:
			fmt.Fprintf(w, "  PASS: %s\n", msg)
		}
	}

	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
		return 1
	}
	fmt.Fprintln(w, "All checks passed!")
	return 0
}

// Deps are the pieces the standard checks exercise. Nil fields skip the
// checks that need them.
type Deps struct {
	Config      config.Config
	ConfigErr   error
	Audio       audio.Context
	Transcriber transcriber.Transcriber
	// ProbeFile is a WAV sent to the transcription service.
	ProbeFile string
	Clipboard inject.Clipboard
	Diagnose  func(hotkey.Combo) (string, error)
	Notify    func(title, message string) error
}

func Checks(d Deps) []Check {
	return []Check{
		{"Configuration", d.checkConfig},
		{"Audio input", d.checkAudio},
		{"Hotkey", d.checkHotkey},
		{"Clipboard", d.checkClipboard},
		{"Notifications", d.checkNotify},
		{"Transcription", d.checkTranscription},
	}
}

func (d Deps) checkConfig(context.Context) (string, error) {
	if d.ConfigErr != nil {
		return "", d.ConfigErr
	}
	t := d.Config.Transcription
	model := t.Model
	if model == "" {
		model = transcriber.DefaultModel(t.Provider)
	}
	return fmt.Sprintf("provider %s, model %s, hotkey %s, inject %s", t.Provider, model, d.Config.Hotkey, d.Config.Inject.Mode), nil
}

func (d Deps) checkAudio(context.Context) (string, error) {
	if d.Audio == nil {
		return "", fmt.Errorf("%w: no audio backend", ErrSkipped)
	}
	devices, err := d.Audio.Devices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", audio.ErrNoDevice
	}
	name := "system default"
	if want := d.Config.Audio.Device; want != "" {
		dev, err := audio.FindDevice(d.Audio, want)
		if err != nil {
			return "", err
		}
		name = dev.Name
	}
	msg := fmt.Sprintf("%d device(s), using %s", len(devices), name)
	if audio.IsBluetooth(name) {
		msg += " (bluetooth input lowers quality)"
	}
	return msg, nil
}

func (d Deps) checkHotkey(context.Context) (string, error) {
	combo, err := hotkey.ParseCombo(d.Config.Hotkey)
	if err != nil {
		return "", err
	}
	if d.Diagnose == nil {
		return "", fmt.Errorf("%w: hotkey backend unavailable", ErrSkipped)
	}
	return d.Diagnose(combo)
}

func (d Deps) checkClipboard(ctx context.Context) (string, error) {
	if d.Clipboard == nil {
		return "", fmt.Errorf("%w: no clipboard", ErrSkipped)
	}
	probe := fmt.Sprintf("voxy-doctor-%d", time.Now().UnixNano())

	type result struct {
		got string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		prev, prevErr := d.Clipboard.ReadAll()
		if err := d.Clipboard.WriteAll(probe); err != nil {
			ch <- result{err: fmt.Errorf("write: %w", err)}
			return
		}
		got, err := d.Clipboard.ReadAll()
		if prevErr == nil {
			d.Clipboard.WriteAll(prev)
		}
		ch <- result{got: got, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		if r.got != probe {
			return "", fmt.Errorf("clipboard mismatch: wrote %q, read %q", probe, r.got)
		}
		return "write/read verified", nil
	case <-ctx.Done():
		return "", fmt.Errorf("clipboard timed out (is a clipboard tool installed?): %w", ctx.Err())
	}
}

func (d Deps) checkNotify(context.Context) (string, error) {
	if d.Notify == nil {
		return "", fmt.Errorf("%w: notifications unavailable", ErrSkipped)
	}
	if err := d.Notify("voxy doctor", "Desktop notifications work."); err != nil {
		return "", err
	}
	return "notification sent", nil
}

func (d Deps) checkTranscription(ctx context.Context) (string, error) {
	if d.Transcriber == nil {
		return "", fmt.Errorf("%w: %v", ErrSkipped, config.ErrMissingAPIKey)
	}
	if d.ProbeFile == "" {
		return "", fmt.Errorf("%w: pass a WAV file to test transcription", ErrSkipped)
	}
	start := time.Now()
	text, err := d.Transcriber.Transcribe(ctx, d.ProbeFile)
	if err != nil {
		return "", err
	}
	if text == "" {
		text = "(no speech detected)"
	}
	return fmt.Sprintf("%s in %s: %q", d.Transcriber.Name(), time.Since(start).Round(time.Millisecond), text), nil
}
