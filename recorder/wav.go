package recorder

import (
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// writeWAV concatenates blocks in order into a 16-bit PCM WAV at path,
// creating the parent directory if needed. A partial file is removed on
// failure.
func writeWAV(path string, blocks [][]int16, sampleRate, channels int) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}

	total := 0
	for _, b := range blocks {
		total += len(b)
	}
	data := make([]int, 0, total)
	for _, b := range blocks {
		for _, s := range b {
			data = append(data, int(s))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrSave, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("%w: encode: %w", ErrSave, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: finalize header: %w", ErrSave, err)
	}
	return nil
}
