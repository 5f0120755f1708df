// Package hotkey registers the global start/stop key combination.
package hotkey

// Hotkey delivers press and release events for one registered combo.
// Sends are non-blocking; a press that arrives while the previous one is
// still unread is dropped.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
