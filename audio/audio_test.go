package audio

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestIsBluetooth(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Jabra Evolve2 65", true},
		{"Built-in Microphone", false},
		{"USB Audio Device", false},
		{"Headset (BT)", true},
	}
	for _, tt := range tests {
		if got := IsBluetooth(tt.name); got != tt.want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

type stubContext struct{ devices []DeviceInfo }

func (s stubContext) Devices() ([]DeviceInfo, error) { return s.devices, nil }
func (s stubContext) NewCapture(*DeviceInfo, CaptureConfig) (CaptureDevice, error) {
	return nil, errors.New("not implemented")
}
func (s stubContext) Close() {}

func TestFindDevice(t *testing.T) {
	ctx := stubContext{devices: []DeviceInfo{
		{ID: "1", Name: "Built-in Microphone"},
		{ID: "2", Name: "Blue Yeti USB"},
	}}

	d, err := FindDevice(ctx, "yeti")
	if err != nil {
		t.Fatal(err)
	}
	if d.ID != "2" {
		t.Errorf("got %q, want device 2", d.ID)
	}

	d, err = FindDevice(ctx, "")
	if err != nil || d != nil {
		t.Errorf("empty name: got %v, %v; want nil, nil", d, err)
	}

	if _, err := FindDevice(ctx, "missing"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("got %v, want ErrNoDevice", err)
	}
}

// keyReader returns one scripted key sequence per Read.
type keyReader struct{ keys []string }

func (k *keyReader) Read(p []byte) (int, error) {
	if len(k.keys) == 0 {
		return 0, io.EOF
	}
	n := copy(p, k.keys[0])
	k.keys = k.keys[1:]
	return n, nil
}

func TestPick(t *testing.T) {
	devices := []DeviceInfo{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	tests := []struct {
		name string
		keys []string
		want int
		err  error
	}{
		{"enter selects first", []string{"\r"}, 0, nil},
		{"vim down", []string{"j", "j", "\r"}, 2, nil},
		{"arrows clamp", []string{"\x1b[B", "\x1b[B", "\x1b[B", "\x1b[A", "\r"}, 1, nil},
		{"ctrl-c cancels", []string{"\x03"}, 0, ErrSelectionCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pick(&keyReader{keys: tt.keys}, io.Discard, devices)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if err == nil && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFakeCaptureDeliversBuffer(t *testing.T) {
	cfg := CaptureConfig{SampleRate: 16000, Channels: 1}
	samples := make([]int16, fakeChunkFrames*3+100)
	fc := NewFakeCapture(EncodeSamples(samples), cfg, false)

	var frames uint32
	var calls int
	fc.SetCallback(func(data []byte, n uint32) {
		frames += n
		calls++
	})
	if err := fc.Start(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fc.AudioDone():
	case <-time.After(time.Second):
		t.Fatal("audio not delivered")
	}
	fc.ClearCallback()
	fc.Stop()

	if calls < 4 {
		t.Errorf("got %d callbacks, want at least 4", calls)
	}
	if frames < uint32(len(samples)) {
		t.Errorf("delivered %d frames, want at least %d", frames, len(samples))
	}
}

func TestFakeCaptureStartErr(t *testing.T) {
	fc := NewFakeCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1}, false)
	fc.StartErr = errors.New("boom")
	if err := fc.Start(); err == nil {
		t.Fatal("expected error")
	}
	fc.Stop() // must not block
	if fc.Starts() != 0 {
		t.Errorf("Starts() = %d, want 0", fc.Starts())
	}
}
