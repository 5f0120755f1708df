package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// FakeTranscriber returns canned results. Like the real client it reports
// ErrAudioNotFound for a missing file.
type FakeTranscriber struct {
	text string
	err  error

	mu    sync.Mutex
	calls []string
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrAudioNotFound, path)
	}
	if err := ctx.Err(); err != nil {
		return "", NewFailedError(CauseNetwork, err)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// Calls returns the paths passed to Transcribe so far.
func (f *FakeTranscriber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
