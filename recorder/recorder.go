// Package recorder captures one utterance at a time: it waits for speech,
// keeps everything from the first loud block until a run of trailing
// silence, and saves the result as a WAV file.
package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"voxy/audio"
	"voxy/feedback"
	"voxy/log"
)

var (
	ErrDevice = errors.New("audio device error")
	ErrSave   = errors.New("saving recording failed")
)

type StopReason int32

const (
	StopNone StopReason = iota
	StopSilence
	StopManual
	StopDeviceError
)

func (r StopReason) String() string {
	switch r {
	case StopSilence:
		return "silence"
	case StopManual:
		return "manual"
	case StopDeviceError:
		return "device_error"
	}
	return "none"
}

type Config struct {
	OutputPath       string
	SampleRate       int
	Channels         int
	BlockSize        int // frames per block
	SilenceThreshold float64
	SilenceStop      time.Duration
	// PollInterval bounds how long the session waits between stall checks.
	PollInterval time.Duration
	// StallTimeout is how long the device may go without delivering data
	// before the stream is considered dead.
	StallTimeout time.Duration
	QueueSize    int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:       44100,
		Channels:         1,
		BlockSize:        1024,
		SilenceThreshold: 50,
		SilenceStop:      1500 * time.Millisecond,
		PollInterval:     500 * time.Millisecond,
		StallTimeout:     3 * time.Second,
		QueueSize:        512,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.BlockSize <= 0 {
		c.BlockSize = d.BlockSize
	}
	if c.SilenceStop <= 0 {
		c.SilenceStop = d.SilenceStop
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = d.StallTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	return c
}

// CaptureConfig is the device configuration matching c.
func (c Config) CaptureConfig() audio.CaptureConfig {
	c = c.withDefaults()
	return audio.CaptureConfig{
		SampleRate:   uint32(c.SampleRate),
		Channels:     uint32(c.Channels),
		PeriodFrames: uint32(c.BlockSize),
	}
}

// Result describes a finished session. Path is set only when a file was
// written.
type Result struct {
	Path     string
	Blocks   int
	Frames   uint64
	Duration time.Duration
	Reason   StopReason
	Err      error
}

// Empty reports whether no speech was captured.
func (r Result) Empty() bool { return r.Blocks == 0 }

func (r Result) Saved() bool { return r.Path != "" }

type Recorder struct {
	capture audio.CaptureDevice
	cfg     Config
	sink    feedback.Sink

	mu     sync.Mutex
	active *Handle
}

// New returns a Recorder reading from capture. sink may be nil.
func New(capture audio.CaptureDevice, cfg Config, sink feedback.Sink) *Recorder {
	return &Recorder{capture: capture, cfg: cfg.withDefaults(), sink: sink}
}

func (r *Recorder) Config() Config { return r.cfg }

// Start begins a new session. It returns nil if one is already running.
func (r *Recorder) Start() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		log.Warn("recorder: already recording, start ignored")
		return nil
	}
	h := &Handle{
		s:    newSession(r.cfg, r.sink),
		done: make(chan struct{}),
	}
	r.active = h
	go r.run(h)
	return h
}

// Stop asks the running session to finish. It is a no-op when idle.
func (r *Recorder) Stop() {
	r.mu.Lock()
	h := r.active
	r.mu.Unlock()
	if h == nil {
		log.Info("recorder: stop requested while idle")
		return
	}
	h.s.requestStop(StopManual)
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func (r *Recorder) release(h *Handle) {
	r.mu.Lock()
	if r.active == h {
		r.active = nil
	}
	r.mu.Unlock()
}

func (r *Recorder) run(h *Handle) {
	defer close(h.done)
	defer r.release(h)

	s := h.s
	var kept [][]int16
	defer func() {
		if p := recover(); p != nil {
			s.fail(fmt.Errorf("%w: panic in capture session: %v", ErrDevice, p))
		}
		h.result = r.finalize(s, kept)
	}()

	r.capture.SetCallback(s.onData)
	r.capture.SetErrorCallback(s.onStreamError)
	if err := r.capture.Start(); err != nil {
		s.fail(fmt.Errorf("%w: start: %w", ErrDevice, err))
		return
	}
	s.deviceStarted = true
	log.Infof("recorder: capturing from %s (%d Hz, %d ch, %d-frame blocks, need %d silent blocks)",
		r.capture.DeviceName(), r.cfg.SampleRate, r.cfg.Channels, r.cfg.BlockSize, s.det.silentNeeded)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case b := <-s.blocks:
			kept = append(kept, b)
		case <-s.stop:
			return
		case err := <-s.streamErr:
			s.fail(fmt.Errorf("%w: %w", ErrDevice, err))
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, s.lastDelivery.Load()))
			if idle > r.cfg.StallTimeout {
				s.fail(fmt.Errorf("%w: stream inactive for %s", ErrDevice, idle.Round(time.Millisecond)))
				return
			}
		}
	}
}

func (r *Recorder) finalize(s *session, kept [][]int16) Result {
	s.requestStop(StopManual)
	if s.deviceStarted {
		r.capture.Stop()
	}
	r.capture.ClearCallback()
	// Wait out a delivery that was already past the stop check; it may
	// still enqueue a block.
	s.delivering.Lock()
	s.delivering.Unlock()

	for drained := false; !drained; {
		select {
		case b := <-s.blocks:
			kept = append(kept, b)
		default:
			drained = true
		}
	}

	res := Result{Blocks: len(kept), Reason: s.reason()}
	for _, b := range kept {
		res.Frames += uint64(len(b) / r.cfg.Channels)
	}
	res.Duration = time.Duration(res.Frames) * time.Second / time.Duration(r.cfg.SampleRate)

	if s.err != nil {
		log.Errorf("recorder: %v", s.err)
		s.push(feedback.ShowMessage{Text: feedback.TextDeviceError})
		res.Err = s.err
	}
	if dropped := s.dropped.Load(); dropped > 0 {
		log.Warnf("recorder: %d blocks dropped on a full queue", dropped)
	}

	if len(kept) == 0 {
		log.Warn("recorder: no speech detected, nothing saved")
	} else if err := writeWAV(r.cfg.OutputPath, kept, r.cfg.SampleRate, r.cfg.Channels); err != nil {
		log.Errorf("recorder: %v", err)
		s.push(feedback.ShowMessage{Text: feedback.TextSaveError})
		if res.Err == nil {
			res.Err = err
		}
	} else {
		res.Path = r.cfg.OutputPath
	}

	log.Capture(log.CaptureStats{
		Blocks:    res.Blocks,
		Frames:    res.Frames,
		DurationS: res.Duration.Seconds(),
		Reason:    res.Reason.String(),
		Saved:     res.Saved(),
	})
	return res
}

// Handle refers to one running or finished session.
type Handle struct {
	s      *session
	done   chan struct{}
	result Result
}

// Done is closed once the session has finalized.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the session has finalized and returns its result.
func (h *Handle) Wait() Result {
	<-h.done
	return h.result
}

// session holds the state of one capture attempt. The detector and staging
// buffer belong to the device callback; everything else crosses goroutines
// through channels or atomics.
type session struct {
	sink         feedback.Sink
	blockSamples int
	det          *detector

	staging []int16

	blocks    chan []int16
	stop      chan struct{}
	stopOnce  sync.Once
	stopWhy   atomic.Int32
	streamErr chan error
	dropped   atomic.Uint64

	// delivering is held for the length of each device callback.
	delivering sync.Mutex

	lastDelivery  atomic.Int64
	deviceStarted bool
	err           error
}

func newSession(cfg Config, sink feedback.Sink) *session {
	s := &session{
		sink:         sink,
		blockSamples: cfg.BlockSize * cfg.Channels,
		det:          newDetector(cfg.SilenceThreshold, silentBlocksNeeded(cfg.SilenceStop, cfg.SampleRate, cfg.BlockSize)),
		blocks:       make(chan []int16, cfg.QueueSize),
		stop:         make(chan struct{}),
		streamErr:    make(chan error, 1),
	}
	s.lastDelivery.Store(time.Now().UnixNano())
	return s
}

func (s *session) requestStop(why StopReason) {
	s.stopOnce.Do(func() {
		s.stopWhy.Store(int32(why))
		close(s.stop)
	})
}

func (s *session) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *session) reason() StopReason {
	return StopReason(s.stopWhy.Load())
}

func (s *session) fail(err error) {
	if s.err == nil {
		s.err = err
	}
	s.requestStop(StopDeviceError)
}

func (s *session) push(m feedback.Message) {
	if s.sink != nil {
		s.sink.Push(m)
	}
}

func (s *session) onStreamError(err error) {
	select {
	case s.streamErr <- err:
	default:
	}
}

// onData runs on the audio backend's thread. It re-blocks whatever the
// device delivers into fixed-size blocks and never blocks itself.
func (s *session) onData(data []byte, _ uint32) {
	s.lastDelivery.Store(time.Now().UnixNano())
	s.delivering.Lock()
	defer s.delivering.Unlock()
	if s.stopped() {
		return
	}
	for i := 0; i+1 < len(data); i += audio.BytesPerSample {
		s.staging = append(s.staging, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	for len(s.staging) >= s.blockSamples {
		block := make([]int16, s.blockSamples)
		copy(block, s.staging)
		s.staging = s.staging[:copy(s.staging, s.staging[s.blockSamples:])]
		s.process(block)
		if s.stopped() {
			s.staging = s.staging[:0]
			return
		}
	}
}

func (s *session) process(block []int16) {
	rms := RMS(block)
	s.push(feedback.UpdateVolume{Level: Normalize(rms)})

	switch s.det.classify(rms) {
	case verdictDiscard:
	case verdictSpeechStart:
		log.Infof("recorder: speech started (rms %.0f)", rms)
		s.enqueue(block)
	case verdictKeep:
		s.enqueue(block)
	case verdictStop:
		s.enqueue(block)
		log.Infof("recorder: %d silent blocks, stopping", s.det.silentRun)
		s.requestStop(StopSilence)
	}
}

func (s *session) enqueue(block []int16) {
	select {
	case s.blocks <- block:
	default:
		s.dropped.Add(1)
	}
}
