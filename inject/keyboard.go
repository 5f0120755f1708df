package inject

import (
	"sync"

	"github.com/micmonay/keybd_event"
)

// keySender is the keystroke backend used by Typer and Paster.
type keySender interface {
	Tap(code int, shift bool) error
	Paste() error
}

// Keyboard sends key events through keybd_event. The key bonding is
// created on first use.
type Keyboard struct {
	once    sync.Once
	initErr error

	mu sync.Mutex
	kb keybd_event.KeyBonding
}

func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

func (k *Keyboard) Init() error {
	k.once.Do(func() {
		k.kb, k.initErr = keybd_event.NewKeyBonding()
	})
	return k.initErr
}

func (k *Keyboard) Tap(code int, shift bool) error {
	if err := k.Init(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kb.Clear()
	k.kb.SetKeys(code)
	k.kb.HasSHIFT(shift)
	return k.kb.Launching()
}

func (k *Keyboard) Paste() error {
	if err := k.Init(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_V)
	pasteModifier(&k.kb)
	return k.kb.Launching()
}
