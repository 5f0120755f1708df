package hotkey

import (
	"sync"
	"time"
)

// DefaultHoldThreshold separates a tap from a hold in push-to-talk mode.
const DefaultHoldThreshold = 300 * time.Millisecond

// Trigger turns raw press/release events into recording commands. Every
// press asks for a recording to start. With a hold threshold set, releasing
// a key held at least that long asks for the recording to stop; a short tap
// leaves stopping to silence detection.
type Trigger struct {
	start chan struct{}
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	now   func() time.Time
}

// NewTrigger starts watching hk. A zero hold disables push-to-talk.
func NewTrigger(hk Hotkey, hold time.Duration) *Trigger {
	t := &Trigger{
		start: make(chan struct{}, 1),
		stop:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		now:   time.Now,
	}
	go t.run(hk, hold)
	return t
}

// Start is signaled on every press.
func (t *Trigger) Start() <-chan struct{} { return t.start }

// Stop is signaled when a held key is released.
func (t *Trigger) Stop() <-chan struct{} { return t.stop }

func (t *Trigger) Close() {
	t.once.Do(func() { close(t.done) })
}

func (t *Trigger) run(hk Hotkey, hold time.Duration) {
	var (
		pressed   bool
		pressedAt time.Time
	)
	for {
		select {
		case <-t.done:
			return
		case <-hk.Keydown():
			if pressed {
				continue
			}
			pressed = true
			pressedAt = t.now()
			notify(t.start)
		case <-hk.Keyup():
			if !pressed {
				continue
			}
			pressed = false
			if hold > 0 && t.now().Sub(pressedAt) >= hold {
				notify(t.stop)
			}
		}
	}
}
