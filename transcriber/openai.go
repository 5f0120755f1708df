package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/net/http2"

	"voxy/log"
)

// OpenAI talks to any OpenAI-compatible /audio/transcriptions endpoint.
type OpenAI struct {
	client   openai.Client
	http     *http.Client
	name     string
	baseURL  string
	apiKey   string
	model    string
	language string
}

// warmTimeout bounds the pre-connect request.
var warmTimeout = 5 * time.Second

func newHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		log.Warnf("http2 unavailable, using http/1.1: %v", err)
	}
	return &http.Client{Transport: tr}
}

func NewOpenAI(cfg Config) *OpenAI {
	hc := newHTTPClient()
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	return &OpenAI{
		client:   openai.NewClient(opts...),
		http:     hc,
		name:     name,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Transcribe(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrAudioNotFound, path)
	}
	if err != nil {
		return "", o.fail(CauseUnexpected, err)
	}
	if o.apiKey == "" {
		return "", o.fail(CauseMissingCredentials, errors.New("no API key configured"))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", o.fail(CauseUnexpected, err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(o.model),
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}

	ctx, tr := withTrace(ctx)
	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", o.fail(classify(err), err)
	}

	text := strings.TrimSpace(resp.Text)
	m := tr.finish()
	m.UploadKB = float64(info.Size()) / 1024
	log.Transcription(m, o.name, o.model, len(text))
	return text, nil
}

// Warm opens a connection to the API host so the TLS handshake is done
// before the recording finishes.
func (o *OpenAI) Warm(ctx context.Context) {
	if o.baseURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, o.baseURL, nil)
	if err != nil {
		return
	}
	ctx, tr := withTrace(req.Context())
	resp, err := o.http.Do(req.WithContext(ctx))
	if err != nil {
		log.Debugf("transcriber %s: warm-up failed: %v", o.name, err)
		return
	}
	resp.Body.Close()
	m := tr.finish()
	log.Debugf("transcriber %s: warm-up tls %.0fms total %.0fms", o.name, m.TLSTimeMs, m.TotalTimeMs)
}

func (o *OpenAI) fail(cause Cause, err error) error {
	log.Errorf("transcriber %s: %s: %v", o.name, cause, err)
	return NewFailedError(cause, err)
}
