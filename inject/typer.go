package inject

import (
	"context"
	"fmt"
	"time"

	"github.com/micmonay/keybd_event"

	"voxy/log"
)

type stroke struct {
	code  int
	shift bool
}

var letterKeys = [26]int{
	keybd_event.VK_A, keybd_event.VK_B, keybd_event.VK_C, keybd_event.VK_D,
	keybd_event.VK_E, keybd_event.VK_F, keybd_event.VK_G, keybd_event.VK_H,
	keybd_event.VK_I, keybd_event.VK_J, keybd_event.VK_K, keybd_event.VK_L,
	keybd_event.VK_M, keybd_event.VK_N, keybd_event.VK_O, keybd_event.VK_P,
	keybd_event.VK_Q, keybd_event.VK_R, keybd_event.VK_S, keybd_event.VK_T,
	keybd_event.VK_U, keybd_event.VK_V, keybd_event.VK_W, keybd_event.VK_X,
	keybd_event.VK_Y, keybd_event.VK_Z,
}

var digitKeys = [10]int{
	keybd_event.VK_0, keybd_event.VK_1, keybd_event.VK_2, keybd_event.VK_3,
	keybd_event.VK_4, keybd_event.VK_5, keybd_event.VK_6, keybd_event.VK_7,
	keybd_event.VK_8, keybd_event.VK_9,
}

func keyFor(r rune) (stroke, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return stroke{letterKeys[r-'a'], false}, true
	case r >= 'A' && r <= 'Z':
		return stroke{letterKeys[r-'A'], true}, true
	case r >= '0' && r <= '9':
		return stroke{digitKeys[r-'0'], false}, true
	case r == ' ':
		return stroke{keybd_event.VK_SPACE, false}, true
	}
	s, ok := platformKeys[r]
	return s, ok
}

// plan maps text to key strokes. It fails if any rune has no key.
func plan(text string) ([]stroke, bool) {
	strokes := make([]stroke, 0, len(text))
	for _, r := range text {
		s, ok := keyFor(r)
		if !ok {
			return nil, false
		}
		strokes = append(strokes, s)
	}
	return strokes, true
}

// Typer types text one key at a time. Text it cannot type (accents,
// layout-dependent punctuation) goes to fallback when one is set.
type Typer struct {
	keys     keySender
	interval time.Duration
	fallback Injector
}

func NewTyper(keys keySender, interval time.Duration, fallback Injector) *Typer {
	return &Typer{keys: keys, interval: interval, fallback: fallback}
}

func (t *Typer) Inject(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	strokes, ok := plan(text)
	if !ok {
		if t.fallback == nil {
			log.Warn("inject: text has characters without a key mapping")
			return ErrUnsupported
		}
		log.Info("inject: text has characters without a key mapping, pasting instead")
		return t.fallback.Inject(ctx, text)
	}

	for i, s := range strokes {
		if i > 0 && t.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.interval):
			}
		}
		if err := t.keys.Tap(s.code, s.shift); err != nil {
			log.Errorf("inject: key %d of %d: %v", i+1, len(strokes), err)
			return fmt.Errorf("%w: %w", ErrKeyboard, err)
		}
	}
	return nil
}
