package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

const fakeChunkFrames = 1024

// FakeContext replays PCM from a WAV file instead of a microphone.
type FakeContext struct {
	pcm        []byte
	sampleRate uint32
	channels   uint32
	realtime   bool
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", wavPath)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("%s: %d-bit WAV, need 16-bit PCM", wavPath, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", wavPath, err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return &FakeContext{
		pcm:        EncodeSamples(samples),
		sampleRate: dec.SampleRate,
		channels:   uint32(dec.NumChans),
		realtime:   realtime,
	}, nil
}

// Format reports the sample rate and channel count of the loaded file.
func (f *FakeContext) Format() (sampleRate, channels uint32) {
	return f.sampleRate, f.channels
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if config.SampleRate != f.sampleRate || config.Channels != f.channels {
		return nil, fmt.Errorf("fake capture: file is %d Hz/%d ch, requested %d Hz/%d ch",
			f.sampleRate, f.channels, config.SampleRate, config.Channels)
	}
	return NewFakeCapture(f.pcm, config, f.realtime), nil
}

// EncodeSamples packs samples as S16LE bytes.
func EncodeSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// FakeCapture delivers a fixed PCM buffer in 1024-frame chunks, then
// silence until stopped. With realtime=false the buffer is delivered
// synchronously inside Start.
type FakeCapture struct {
	pcm      []byte
	config   CaptureConfig
	realtime bool

	// StartErr, when set, is returned by Start.
	StartErr error

	mu        sync.Mutex
	cb        DataCallback
	errCb     ErrorCallback
	stopCh    chan struct{}
	feedDone  chan struct{}
	audioDone chan struct{}
	starts    int
}

func NewFakeCapture(pcm []byte, config CaptureConfig, realtime bool) *FakeCapture {
	return &FakeCapture{
		pcm:       pcm,
		config:    config,
		realtime:  realtime,
		audioDone: make(chan struct{}),
	}
}

// AudioDone is closed once the whole buffer has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioDone
}

// Starts reports how many times Start succeeded.
func (f *FakeCapture) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) SetErrorCallback(cb ErrorCallback) {
	f.mu.Lock()
	f.errCb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.errCb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// Fail simulates the stream dying underneath a running capture.
func (f *FakeCapture) Fail(err error) {
	f.mu.Lock()
	cb := f.errCb
	f.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/f.config.FrameBytes()))
	return end
}

func (f *FakeCapture) Start() error {
	if f.StartErr != nil {
		return f.StartErr
	}

	f.mu.Lock()
	f.starts++
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	audioDone := f.audioDone
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()

	chunkBytes := fakeChunkFrames * f.config.FrameBytes()
	silence := make([]byte, chunkBytes)
	interval := time.Duration(fakeChunkFrames) * time.Second / time.Duration(f.config.SampleRate)

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		close(audioDone)
	}

	go func() {
		defer close(feedDone)
		pos := 0
		finished := !f.realtime
		for {
			select {
			case <-stopCh:
				return
			case <-time.After(interval):
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) && f.realtime {
				pos = f.feedChunk(cb, pos, chunkBytes)
				continue
			}
			if !finished {
				finished = true
				close(audioDone)
			}
			cb(silence, fakeChunkFrames)
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()
	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-feedDone

	f.mu.Lock()
	f.audioDone = make(chan struct{}) // reset for replay
	f.mu.Unlock()
}

func (f *FakeCapture) Close() { f.Stop() }
