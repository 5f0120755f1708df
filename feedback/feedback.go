// Package feedback carries status messages from the capture and workflow
// goroutines to whichever overlay is rendering them.
package feedback

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"voxy/log"
)

// Overlay texts for ShowMessage.
const (
	TextRecordingError     = "recording error"
	TextTranscriptionError = "transcription error"
	TextInjecting          = "injecting"
	TextInjectionError     = "injection error"
	TextSaveError          = "save error"
	TextDeviceError        = "device error"
	TextUnexpectedError    = "unexpected error"
)

const (
	DefaultCapacity     = 256
	DefaultPollInterval = 50 * time.Millisecond
)

// Message is one of the six variants below. The set is closed.
type Message interface {
	isMessage()
}

type StartRecording struct{}

type StopRecording struct{}

// UpdateVolume carries a loudness level normalized to [0, 1].
type UpdateVolume struct {
	Level float64
}

type ShowMessage struct {
	Text string
}

type StartProcessing struct{}

type ProcessingComplete struct{}

func (StartRecording) isMessage()     {}
func (StopRecording) isMessage()      {}
func (UpdateVolume) isMessage()       {}
func (ShowMessage) isMessage()        {}
func (StartProcessing) isMessage()    {}
func (ProcessingComplete) isMessage() {}

// Name returns a stable identifier for logs.
func Name(m Message) string {
	switch m.(type) {
	case StartRecording:
		return "start_recording"
	case StopRecording:
		return "stop_recording"
	case UpdateVolume:
		return "update_volume"
	case ShowMessage:
		return "show_message"
	case StartProcessing:
		return "start_processing"
	case ProcessingComplete:
		return "processing_complete"
	}
	return fmt.Sprintf("%T", m)
}

// Sink is the producer side of a Channel.
type Sink interface {
	Push(m Message) bool
}

// Channel is a bounded FIFO with a single consumer. Push never blocks.
type Channel struct {
	ch      chan Message
	dropped atomic.Uint64
}

func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{ch: make(chan Message, capacity)}
}

// Push enqueues m, or drops it when the channel is full.
func (c *Channel) Push(m Message) bool {
	select {
	case c.ch <- m:
		return true
	default:
	}
	n := c.dropped.Add(1)
	if _, ok := m.(UpdateVolume); ok {
		log.Debugf("feedback full, dropped volume update (total dropped %d)", n)
	} else {
		log.Warnf("feedback full, dropped %s (total dropped %d)", Name(m), n)
	}
	return false
}

// Dropped reports how many messages Push has discarded.
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}

// Len reports the number of queued messages.
func (c *Channel) Len() int {
	return len(c.ch)
}

// Drain dispatches every message queued at the time of the call, in order.
// Messages pushed while draining are left for the next call.
func (c *Channel) Drain(dispatch func(Message)) int {
	n := len(c.ch)
	for i := 0; i < n; i++ {
		select {
		case m := <-c.ch:
			dispatch(m)
		default:
			return i
		}
	}
	return n
}

// Run drains the channel every interval until ctx is done, with a final
// drain on the way out.
func (c *Channel) Run(ctx context.Context, interval time.Duration, dispatch func(Message)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Drain(dispatch)
			return
		case <-ticker.C:
			c.Drain(dispatch)
		}
	}
}

// LogDispatch is the consumer used when no overlay is attached.
func LogDispatch(m Message) {
	switch m := m.(type) {
	case UpdateVolume:
	case ShowMessage:
		log.Infof("overlay: %s", m.Text)
	default:
		log.Debugf("overlay: %s", Name(m))
	}
}
