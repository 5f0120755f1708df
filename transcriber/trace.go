package transcriber

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"

	"voxy/log"
)

// requestTrace records connection timings through httptrace. Hooks may fire
// from transport goroutines, so fields are guarded.
type requestTrace struct {
	mu sync.Mutex

	start      time.Time
	dnsStart   time.Time
	tlsStart   time.Time
	wroteReq   time.Time
	dns        time.Duration
	tls        time.Duration
	ttfb       time.Duration
	connReused bool
	proto      string
}

func withTrace(ctx context.Context) (context.Context, *requestTrace) {
	t := &requestTrace{start: time.Now()}
	ct := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			t.mu.Lock()
			t.connReused = info.Reused
			t.mu.Unlock()
		},
		DNSStart: func(httptrace.DNSStartInfo) {
			t.mu.Lock()
			t.dnsStart = time.Now()
			t.mu.Unlock()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			t.mu.Lock()
			t.dns = time.Since(t.dnsStart)
			t.mu.Unlock()
		},
		TLSHandshakeStart: func() {
			t.mu.Lock()
			t.tlsStart = time.Now()
			t.mu.Unlock()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			t.mu.Lock()
			t.tls = time.Since(t.tlsStart)
			t.proto = state.NegotiatedProtocol
			t.mu.Unlock()
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			t.mu.Lock()
			t.wroteReq = time.Now()
			t.mu.Unlock()
		},
		GotFirstResponseByte: func() {
			t.mu.Lock()
			if !t.wroteReq.IsZero() {
				t.ttfb = time.Since(t.wroteReq)
			}
			t.mu.Unlock()
		},
	}
	return httptrace.WithClientTrace(ctx, ct), t
}

func (t *requestTrace) finish() log.NetworkMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return log.NetworkMetrics{
		DNSTimeMs:   ms(t.dns),
		TLSTimeMs:   ms(t.tls),
		TTFBMs:      ms(t.ttfb),
		TotalTimeMs: ms(time.Since(t.start)),
		ConnReused:  t.connReused,
		Proto:       t.proto,
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
