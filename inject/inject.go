// Package inject puts transcribed text at the current input focus.
package inject

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"voxy/log"
)

var (
	ErrKeyboard    = errors.New("simulated keyboard input failed")
	ErrClipboard   = errors.New("clipboard access failed")
	ErrUnsupported = errors.New("text contains characters that cannot be typed")
)

type Mode string

const (
	ModePaste  Mode = "paste"
	ModeType   Mode = "type"
	ModeStdout Mode = "stdout"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePaste, ModeType, ModeStdout:
		return m, nil
	case "":
		return ModePaste, nil
	}
	return "", fmt.Errorf("unknown inject mode %q (use paste, type or stdout)", s)
}

// Injector delivers text to the focused application. Empty text is a
// successful no-op.
type Injector interface {
	Inject(ctx context.Context, text string) error
}

type Options struct {
	// KeyInterval is the pause between typed characters.
	KeyInterval time.Duration
	// RestoreAfter is how long the pasted text stays on the clipboard
	// before the previous contents are put back. Zero disables restoring.
	RestoreAfter time.Duration
}

// New builds the injector for mode using the system keyboard and clipboard.
func New(mode Mode, opts Options) (Injector, error) {
	switch mode {
	case ModeStdout:
		return &Writer{W: os.Stdout}, nil
	case ModePaste, ModeType:
		kb := NewKeyboard()
		if err := kb.Init(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyboard, err)
		}
		paster := NewPaster(kb, SystemClipboard{}, opts.RestoreAfter)
		if mode == ModePaste {
			return paster, nil
		}
		return NewTyper(kb, opts.KeyInterval, paster), nil
	}
	return nil, fmt.Errorf("unknown inject mode %q", mode)
}

// Writer prints the text, one line per call. Used in headless runs.
type Writer struct {
	mu sync.Mutex
	W  io.Writer
}

func (w *Writer) Inject(_ context.Context, text string) error {
	if text == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintln(w.W, text); err != nil {
		log.Errorf("inject: write: %v", err)
		return err
	}
	return nil
}

// Fake records injected text.
type Fake struct {
	Err error

	mu    sync.Mutex
	texts []string
}

func (f *Fake) Inject(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.Err
}

func (f *Fake) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}
