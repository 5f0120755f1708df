package inject

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"

	"voxy/log"
)

// pasteSettle gives the clipboard owner time to publish the new contents
// before the paste chord arrives.
const pasteSettle = 30 * time.Millisecond

type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// SystemClipboard is the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) ReadAll() (string, error) { return clipboard.ReadAll() }

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Paster puts text on the clipboard and sends the paste shortcut. The
// previous clipboard contents come back after restoreAfter unless the user
// copied something else in the meantime.
type Paster struct {
	keys         keySender
	clip         Clipboard
	restoreAfter time.Duration
}

func NewPaster(keys keySender, clip Clipboard, restoreAfter time.Duration) *Paster {
	return &Paster{keys: keys, clip: clip, restoreAfter: restoreAfter}
}

func (p *Paster) Inject(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	prev, prevErr := p.clip.ReadAll()

	if err := p.clip.WriteAll(text); err != nil {
		log.Errorf("inject: clipboard write: %v", err)
		return fmt.Errorf("%w: %w", ErrClipboard, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(pasteSettle):
	}

	if err := p.keys.Paste(); err != nil {
		log.Errorf("inject: paste shortcut: %v", err)
		return fmt.Errorf("%w: %w", ErrKeyboard, err)
	}

	if prevErr == nil && p.restoreAfter > 0 {
		go p.restore(text, prev)
	}
	return nil
}

func (p *Paster) restore(pasted, prev string) {
	time.Sleep(p.restoreAfter)
	cur, err := p.clip.ReadAll()
	if err != nil || cur != pasted {
		return
	}
	if err := p.clip.WriteAll(prev); err != nil {
		log.Warnf("inject: clipboard restore: %v", err)
	}
}
