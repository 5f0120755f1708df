package inject

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeKeys struct {
	mu       sync.Mutex
	taps     []stroke
	pastes   int
	tapErr   error
	pasteErr error
}

func (k *fakeKeys) Tap(code int, shift bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.tapErr != nil {
		return k.tapErr
	}
	k.taps = append(k.taps, stroke{code, shift})
	return nil
}

func (k *fakeKeys) Paste() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.pasteErr != nil {
		return k.pasteErr
	}
	k.pastes++
	return nil
}

func (k *fakeKeys) counts() (int, int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.taps), k.pastes
}

type fakeClipboard struct {
	mu       sync.Mutex
	text     string
	writeErr error
	readErr  error
}

func (c *fakeClipboard) ReadAll() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.readErr
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.text = text
	return nil
}

func (c *fakeClipboard) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func TestEmptyTextSendsNoKeys(t *testing.T) {
	keys := &fakeKeys{}
	clip := &fakeClipboard{text: "keep"}
	paster := NewPaster(keys, clip, 0)
	injectors := map[string]Injector{
		"typer":  NewTyper(keys, 0, paster),
		"paster": paster,
		"writer": &Writer{W: &bytes.Buffer{}},
	}
	for name, inj := range injectors {
		if err := inj.Inject(context.Background(), ""); err != nil {
			t.Errorf("%s: Inject(\"\") = %v, want nil", name, err)
		}
	}
	if taps, pastes := keys.counts(); taps != 0 || pastes != 0 {
		t.Errorf("got %d taps and %d pastes for empty text", taps, pastes)
	}
	if clip.get() != "keep" {
		t.Error("clipboard touched for empty text")
	}
}

func TestTyperTypesMappedText(t *testing.T) {
	keys := &fakeKeys{}
	typer := NewTyper(keys, 0, nil)

	if err := typer.Inject(context.Background(), "Hi 42"); err != nil {
		t.Fatal(err)
	}
	want := []stroke{
		{letterKeys['h'-'a'], true},
		{letterKeys['i'-'a'], false},
		mustKey(t, ' '),
		{digitKeys[4], false},
		{digitKeys[2], false},
	}
	if len(keys.taps) != len(want) {
		t.Fatalf("got %d taps, want %d", len(keys.taps), len(want))
	}
	for i := range want {
		if keys.taps[i] != want[i] {
			t.Errorf("tap %d = %+v, want %+v", i, keys.taps[i], want[i])
		}
	}
}

func mustKey(t *testing.T, r rune) stroke {
	t.Helper()
	s, ok := keyFor(r)
	if !ok {
		t.Fatalf("no key for %q", r)
	}
	return s
}

func TestTyperFallsBackToPaste(t *testing.T) {
	keys := &fakeKeys{}
	clip := &fakeClipboard{}
	typer := NewTyper(keys, 0, NewPaster(keys, clip, 0))

	if err := typer.Inject(context.Background(), "olá"); err != nil {
		t.Fatal(err)
	}
	taps, pastes := keys.counts()
	if taps != 0 || pastes != 1 {
		t.Errorf("taps=%d pastes=%d, want 0 and 1", taps, pastes)
	}
	if clip.get() != "olá" {
		t.Errorf("clipboard = %q", clip.get())
	}
}

func TestTyperWithoutFallbackRejectsUnmapped(t *testing.T) {
	keys := &fakeKeys{}
	err := NewTyper(keys, 0, nil).Inject(context.Background(), "naïve")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if taps, _ := keys.counts(); taps != 0 {
		t.Errorf("typed %d keys before rejecting", taps)
	}
}

func TestTyperKeyboardFailure(t *testing.T) {
	keys := &fakeKeys{tapErr: errors.New("uinput denied")}
	err := NewTyper(keys, 0, nil).Inject(context.Background(), "abc")
	if !errors.Is(err, ErrKeyboard) {
		t.Errorf("err = %v, want ErrKeyboard", err)
	}
}

func TestTyperHonorsCancel(t *testing.T) {
	keys := &fakeKeys{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTyper(keys, time.Second, nil).Inject(ctx, "abc")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if taps, _ := keys.counts(); taps != 1 {
		t.Errorf("typed %d keys after cancel, want 1", taps)
	}
}

func TestPasterRestoresClipboard(t *testing.T) {
	keys := &fakeKeys{}
	clip := &fakeClipboard{text: "previous"}
	p := NewPaster(keys, clip, 10*time.Millisecond)

	if err := p.Inject(context.Background(), "dictated"); err != nil {
		t.Fatal(err)
	}
	if _, pastes := keys.counts(); pastes != 1 {
		t.Errorf("pastes = %d, want 1", pastes)
	}

	deadline := time.Now().Add(time.Second)
	for clip.get() != "previous" {
		if time.Now().After(deadline) {
			t.Fatalf("clipboard = %q, want previous contents restored", clip.get())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPasterFailures(t *testing.T) {
	tests := []struct {
		name string
		keys *fakeKeys
		clip *fakeClipboard
		want error
	}{
		{"clipboard", &fakeKeys{}, &fakeClipboard{writeErr: errors.New("no display")}, ErrClipboard},
		{"keyboard", &fakeKeys{pasteErr: errors.New("denied")}, &fakeClipboard{}, ErrKeyboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPaster(tt.keys, tt.clip, 0).Inject(context.Background(), "x")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{W: &buf}
	w.Inject(context.Background(), "one")
	w.Inject(context.Background(), "two")
	if buf.String() != "one\ntwo\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModePaste, "paste": ModePaste, "type": ModeType, "stdout": ModeStdout} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("telepathy"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
