//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"voxy/audio"
	"voxy/log"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	soundOnce sync.Once

	// read from the device callback
	playing atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Debugf("beep: malgo context: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Debugf("beep: playback device: %v", err)
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func dataCallback(out, _ []byte, frameCount uint32) {
	want := frameCount * audio.BytesPerSample
	buf := playing.Load()
	var n uint32
	if buf != nil {
		pos := playPos.Load()
		if total := uint32(len(*buf)); pos < total {
			n = min(want, total-pos)
			copy(out[:n], (*buf)[pos:pos+n])
			playPos.Store(pos + n)
		} else {
			playing.Store(nil)
		}
	}
	clear(out[n:want])
}

func playCue(c Cue) {
	soundOnce.Do(initSound)
	pcm := audio.EncodeSamples(samples(c))
	if malgoCtx == nil || len(pcm) == 0 {
		return
	}

	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}

	device.Stop()
	playPos.Store(0)
	playing.Store(&pcm)

	if err := device.Start(); err != nil {
		// The device goes stale across sleep/wake; rebuild it once.
		device.Uninit()
		if err := initDevice(); err != nil {
			playing.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playing.Store(nil)
		}
	}
}
