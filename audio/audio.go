package audio

import (
	"errors"
	"fmt"
	"strings"
)

// BytesPerSample is fixed: every backend delivers signed 16-bit little-endian PCM.
const BytesPerSample = 2

var ErrNoDevice = errors.New("no capture device")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a headset running
// over a narrow-band bluetooth profile.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives interleaved S16LE samples. It runs on the backend's
// own thread and must not block.
type DataCallback func(data []byte, frameCount uint32)

// ErrorCallback is invoked when the stream dies underneath a running capture.
type ErrorCallback func(err error)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// PeriodFrames is a hint for the delivery size. Backends may deliver
	// other sizes; consumers re-block.
	PeriodFrames uint32
}

func (c CaptureConfig) FrameBytes() int {
	return int(c.Channels) * BytesPerSample
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	SetErrorCallback(cb ErrorCallback)
	ClearCallback()
	DeviceName() string
}

// FindDevice returns the first device whose name contains name
// (case-insensitive). An empty name selects the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	want := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), want) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w matching %q", ErrNoDevice, name)
}
