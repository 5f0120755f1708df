package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"voxy/audio"
	"voxy/feedback"
)

const testBlock = 1024

// pcm builds S16LE audio from a script of block kinds: 'L' is a loud block
// (RMS 1000), '.' is digital silence.
func pcm(script string) []byte {
	samples := make([]int16, 0, len(script)*testBlock)
	for _, c := range script {
		for i := 0; i < testBlock; i++ {
			var v int16
			if c == 'L' {
				v = 1000
				if i%2 == 1 {
					v = -1000
				}
			}
			samples = append(samples, v)
		}
	}
	return audio.EncodeSamples(samples)
}

func repeat(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}

func newTestRecorder(t *testing.T, script string, sink feedback.Sink) (*Recorder, *audio.FakeCapture, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "nested", "rec.wav")
	fc := audio.NewFakeCapture(pcm(script), cfg.CaptureConfig(), false)
	return New(fc, cfg, sink), fc, cfg.OutputPath
}

func waitResult(t *testing.T, h *Handle) Result {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	return h.Wait()
}

func waitAudio(t *testing.T, fc *audio.FakeCapture) {
	t.Helper()
	select {
	case <-fc.AudioDone():
	case <-time.After(5 * time.Second):
		t.Fatal("fake audio not delivered")
	}
}

func readWAV(t *testing.T, path string) []int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("invalid WAV file")
	}
	if dec.SampleRate != 44100 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("format = %d Hz/%d ch/%d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Data
}

func TestSilenceAutoStop(t *testing.T) {
	// 5 quiet lead-in blocks, 10 loud, 64 quiet, then loud audio that must
	// never be reached.
	script := repeat('.', 5) + repeat('L', 10) + repeat('.', 64) + repeat('L', 20)
	rec, _, path := newTestRecorder(t, script, nil)

	h := rec.Start()
	if h == nil {
		t.Fatal("Start returned nil")
	}
	res := waitResult(t, h)

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Reason != StopSilence {
		t.Errorf("reason = %s, want silence", res.Reason)
	}
	if res.Blocks != 74 {
		t.Errorf("blocks = %d, want 74", res.Blocks)
	}
	if res.Path != path {
		t.Errorf("path = %q, want %q", res.Path, path)
	}

	data := readWAV(t, path)
	if len(data) != 74*testBlock {
		t.Fatalf("saved %d samples, want %d", len(data), 74*testBlock)
	}
	if data[0] != 1000 {
		t.Errorf("first saved sample = %d, want loud audio (lead-in not discarded)", data[0])
	}
	for i := 10 * testBlock; i < len(data); i++ {
		if data[i] != 0 {
			t.Fatalf("sample %d = %d, want trailing silence", i, data[i])
		}
	}
	if rec.IsRecording() {
		t.Error("IsRecording() true after session finished")
	}
}

func TestNoSpeechWritesNothing(t *testing.T) {
	rec, fc, path := newTestRecorder(t, repeat('.', 100), nil)

	h := rec.Start()
	waitAudio(t, fc)
	if !rec.IsRecording() {
		t.Fatal("quiet input must not stop the session")
	}
	rec.Stop()
	res := waitResult(t, h)

	if !res.Empty() {
		t.Errorf("blocks = %d, want 0", res.Blocks)
	}
	if res.Err != nil {
		t.Errorf("empty capture reported error: %v", res.Err)
	}
	if res.Reason != StopManual {
		t.Errorf("reason = %s, want manual", res.Reason)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file written for silent capture: %v", err)
	}
}

func TestManualStopSavesSpeech(t *testing.T) {
	rec, fc, path := newTestRecorder(t, repeat('L', 12)+repeat('.', 3), nil)

	h := rec.Start()
	waitAudio(t, fc)
	rec.Stop()
	res := waitResult(t, h)

	if res.Reason != StopManual {
		t.Errorf("reason = %s, want manual", res.Reason)
	}
	if res.Blocks < 15 {
		t.Errorf("blocks = %d, want at least 15", res.Blocks)
	}
	if !res.Saved() {
		t.Fatal("nothing saved")
	}
	if got := len(readWAV(t, path)); got != res.Blocks*testBlock {
		t.Errorf("saved %d samples, want %d", got, res.Blocks*testBlock)
	}
}

func TestStartWhileRecordingReturnsNil(t *testing.T) {
	rec, fc, _ := newTestRecorder(t, repeat('.', 4), nil)

	h := rec.Start()
	waitAudio(t, fc)
	if again := rec.Start(); again != nil {
		t.Fatal("second Start returned a handle")
	}
	if !rec.IsRecording() {
		t.Error("first session disturbed by second Start")
	}
	if fc.Starts() != 1 {
		t.Errorf("device started %d times, want 1", fc.Starts())
	}
	rec.Stop()
	waitResult(t, h)
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	rec, fc, _ := newTestRecorder(t, "", nil)
	rec.Stop()
	rec.Stop()
	if rec.IsRecording() {
		t.Error("IsRecording() true after Stop on idle recorder")
	}
	if fc.Starts() != 0 {
		t.Error("Stop started the device")
	}
}

func TestRestartAfterFinish(t *testing.T) {
	rec, _, _ := newTestRecorder(t, repeat('L', 2)+repeat('.', 64), nil)

	first := waitResult(t, rec.Start())
	h := rec.Start()
	if h == nil {
		t.Fatal("Start after finished session returned nil")
	}
	second := waitResult(t, h)
	if first.Blocks != 66 || second.Blocks != 66 {
		t.Errorf("blocks = %d, %d; want 66 each (state not reset)", first.Blocks, second.Blocks)
	}
}

func TestVolumeUpdates(t *testing.T) {
	sink := feedback.NewChannel(1024)
	rec, _, _ := newTestRecorder(t, repeat('.', 3)+repeat('L', 5)+repeat('.', 64), sink)
	waitResult(t, rec.Start())

	var levels []float64
	sink.Drain(func(m feedback.Message) {
		if v, ok := m.(feedback.UpdateVolume); ok {
			levels = append(levels, v.Level)
		}
	})
	if len(levels) < 72 {
		t.Fatalf("got %d volume updates, want at least 72", len(levels))
	}
	if levels[0] != 0 {
		t.Errorf("silent block level = %v, want 0", levels[0])
	}
	if levels[3] != 1 {
		t.Errorf("loud block level = %v, want 1 (clamped)", levels[3])
	}
}

func TestDeviceStartError(t *testing.T) {
	sink := feedback.NewChannel(16)
	rec, fc, _ := newTestRecorder(t, repeat('L', 4), sink)
	fc.StartErr = errors.New("no such device")

	res := waitResult(t, rec.Start())
	if !errors.Is(res.Err, ErrDevice) {
		t.Fatalf("err = %v, want ErrDevice", res.Err)
	}
	if res.Reason != StopDeviceError {
		t.Errorf("reason = %s, want device_error", res.Reason)
	}
	if !hasMessage(sink, feedback.TextDeviceError) {
		t.Error("device error not reported to feedback")
	}
}

func TestStreamFailureKeepsPartialAudio(t *testing.T) {
	sink := feedback.NewChannel(1024)
	rec, fc, path := newTestRecorder(t, repeat('L', 10), sink)

	h := rec.Start()
	waitAudio(t, fc)
	fc.Fail(errors.New("device unplugged"))
	res := waitResult(t, h)

	if !errors.Is(res.Err, ErrDevice) {
		t.Fatalf("err = %v, want ErrDevice", res.Err)
	}
	if !res.Saved() || res.Blocks < 10 {
		t.Errorf("partial capture not saved: %+v", res)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
	if !hasMessage(sink, feedback.TextDeviceError) {
		t.Error("device error not reported to feedback")
	}
}

// silentDevice starts fine but never delivers a byte.
type silentDevice struct{}

func (silentDevice) Start() error                         { return nil }
func (silentDevice) Stop()                                {}
func (silentDevice) Close()                               {}
func (silentDevice) SetCallback(audio.DataCallback)       {}
func (silentDevice) SetErrorCallback(audio.ErrorCallback) {}
func (silentDevice) ClearCallback()                       {}
func (silentDevice) DeviceName() string                   { return "silent" }

func TestStalledStreamIsDeviceError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "rec.wav")
	cfg.PollInterval = 10 * time.Millisecond
	cfg.StallTimeout = 50 * time.Millisecond
	rec := New(silentDevice{}, cfg, nil)

	res := waitResult(t, rec.Start())
	if !errors.Is(res.Err, ErrDevice) {
		t.Fatalf("err = %v, want ErrDevice", res.Err)
	}
	if !res.Empty() {
		t.Errorf("blocks = %d, want 0", res.Blocks)
	}
}

func TestSaveErrorReported(t *testing.T) {
	sink := feedback.NewChannel(1024)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.OutputPath = filepath.Join(blocker, "rec.wav")
	fc := audio.NewFakeCapture(pcm(repeat('L', 3)+repeat('.', 64)), cfg.CaptureConfig(), false)
	rec := New(fc, cfg, sink)

	res := waitResult(t, rec.Start())
	if !errors.Is(res.Err, ErrSave) {
		t.Fatalf("err = %v, want ErrSave", res.Err)
	}
	if res.Saved() {
		t.Error("Saved() true after write failure")
	}
	if !hasMessage(sink, feedback.TextSaveError) {
		t.Error("save error not reported to feedback")
	}
}

func TestReblocksOddDeliverySizes(t *testing.T) {
	cfg := DefaultConfig()
	s := newSession(cfg, nil)
	raw := pcm(repeat('L', 3))

	// Deliver in 700-byte pieces, which straddle block boundaries.
	for i := 0; i < len(raw); i += 700 {
		s.onData(raw[i:min(i+700, len(raw))], 0)
	}
	if got := len(s.blocks); got != 3 {
		t.Errorf("queued %d blocks, want 3", got)
	}
	if len(s.staging) != 0 {
		t.Errorf("%d samples left in staging", len(s.staging))
	}
}

// handDevice delivers data only when the test calls deliver.
type handDevice struct {
	silentDevice
	mu sync.Mutex
	cb audio.DataCallback
}

func (d *handDevice) SetCallback(cb audio.DataCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

func (d *handDevice) ClearCallback() { d.SetCallback(nil) }

func (d *handDevice) callback() audio.DataCallback {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cb
}

// gateSink parks the first volume update until release is closed.
type gateSink struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gateSink) Push(m feedback.Message) bool {
	if _, ok := m.(feedback.UpdateVolume); ok {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return true
}

func TestStopKeepsBlockDeliveredDuringStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "rec.wav")
	cfg.StallTimeout = time.Minute
	dev := &handDevice{}
	sink := &gateSink{entered: make(chan struct{}), release: make(chan struct{})}
	rec := New(dev, cfg, sink)

	h := rec.Start()
	deadline := time.Now().Add(5 * time.Second)
	for dev.callback() == nil {
		if time.Now().After(deadline) {
			t.Fatal("callback never installed")
		}
		time.Sleep(time.Millisecond)
	}

	// The delivery is past the stop check and parked before it enqueues
	// when the stop arrives.
	cb := dev.callback()
	go cb(pcm("L"), testBlock)
	<-sink.entered
	rec.Stop()
	time.AfterFunc(50*time.Millisecond, func() { close(sink.release) })

	res := waitResult(t, h)
	if res.Blocks != 1 {
		t.Fatalf("blocks = %d, want the in-flight block kept", res.Blocks)
	}
	if res.Reason != StopManual || !res.Saved() {
		t.Errorf("reason = %v saved = %v", res.Reason, res.Saved())
	}
}

func hasMessage(c *feedback.Channel, text string) bool {
	found := false
	c.Drain(func(m feedback.Message) {
		if sm, ok := m.(feedback.ShowMessage); ok && sm.Text == text {
			found = true
		}
	})
	return found
}
