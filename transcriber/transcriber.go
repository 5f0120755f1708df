package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/openai/openai-go/v3"
)

var (
	// ErrAudioNotFound means the caller passed a path that does not exist.
	// It is never wrapped in ErrFailed.
	ErrAudioNotFound = errors.New("audio file not found")
	// ErrFailed covers every service-side failure. The specific Cause is
	// available through CauseOf.
	ErrFailed = errors.New("transcription failed")
)

type Cause string

const (
	CauseMissingCredentials Cause = "missing_credentials"
	CauseAuth               Cause = "auth"
	CauseRateLimit          Cause = "rate_limit"
	CauseAPI                Cause = "api_error"
	CauseNetwork            Cause = "network"
	CauseUnexpected         Cause = "unexpected"
)

// FailedError is returned for every service failure. errors.Is(err,
// ErrFailed) holds for it.
type FailedError struct {
	Cause Cause
	Err   error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("transcription failed (%s): %v", e.Cause, e.Err)
}

func (e *FailedError) Unwrap() []error { return []error{ErrFailed, e.Err} }

func NewFailedError(cause Cause, err error) *FailedError {
	return &FailedError{Cause: cause, Err: err}
}

// CauseOf returns the failure cause of err, or "" if err is not a
// transcription failure.
func CauseOf(err error) Cause {
	var fe *FailedError
	if errors.As(err, &fe) {
		return fe.Cause
	}
	return ""
}

func classify(err error) Cause {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return CauseAuth
		case 429:
			return CauseRateLimit
		}
		return CauseAPI
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return CauseNetwork
	}
	return CauseUnexpected
}

type Transcriber interface {
	Name() string
	// Transcribe returns the text spoken in the audio file at path.
	Transcribe(ctx context.Context, path string) (string, error)
}

// Warmer is implemented by transcribers that can open their connection
// ahead of the first request.
type Warmer interface {
	Warm(ctx context.Context)
}

type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	Timeout    time.Duration
	MaxRetries int
}

type provider struct {
	baseURL string
	model   string
}

var providers = map[string]provider{
	"openai": {baseURL: "https://api.openai.com/v1/", model: "whisper-1"},
	"groq":   {baseURL: "https://api.groq.com/openai/v1/", model: "whisper-large-v3"},
}

// Providers lists the names New accepts.
func Providers() []string {
	return []string{"openai", "groq"}
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(name string) string {
	return providers[name].model
}

func New(cfg Config) (Transcriber, error) {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	p, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = p.model
	}
	return NewOpenAI(cfg), nil
}
