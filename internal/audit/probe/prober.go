// Package probe is the one-shot HTTP fetch primitive of the audit engine:
// deadline-bounded requests, HEAD-then-GET fallback, and retry with jitter on
// transient network failures.
package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RedirectMode controls how a fetch treats 3xx responses.
type RedirectMode int

const (
	// RedirectFollow follows redirects, up to ten requests in the chain, and
	// reports the final URL.
	RedirectFollow RedirectMode = iota
	// RedirectManual returns the first response untouched so the caller can
	// inspect Location.
	RedirectManual
)

const (
	maxRedirects = 10
	maxAssetBody = 1 << 20
)

// Options shapes a single fetch.
type Options struct {
	Method   string
	Redirect RedirectMode
	Timeout  time.Duration
	Headers  http.Header
	// ReadBody controls whether the response body is consumed into Result.Body.
	ReadBody bool
	// MaxBody caps the body read; 0 means the asset default.
	MaxBody int64
	// FallbackOnNonOK makes HeadThenGet retry as GET on any non-2xx/3xx HEAD
	// response, not just 405/501.
	FallbackOnNonOK bool
}

// Result is the outcome of one fetch.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
	Elapsed    time.Duration
}

// OK reports whether the response status is 2xx.
func (r *Result) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentLength returns the parsed Content-Length header, or -1.
func (r *Result) ContentLength() int64 {
	if r == nil {
		return -1
	}
	v := r.Header.Get("Content-Length")
	if v == "" {
		return -1
	}
	var n int64
	for _, c := range v {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

// Prober issues outbound HTTP requests for audits. Safe for concurrent use.
type Prober struct {
	follow *http.Client
	manual *http.Client
	logger *zap.Logger
}

// New creates a Prober. Per-request deadlines come from Options; the clients
// themselves carry no timeout.
func New(logger *zap.Logger) *Prober {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Prober{
		follow: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		manual: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Fetch issues a single request with the caller's deadline. The returned error
// satisfies IsAbort when the deadline elapsed.
func (p *Prober) Fetch(ctx context.Context, url string, opts Options) (*Result, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}

	headers := opts.Headers
	if headers == nil {
		headers = DefaultHeaders()
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", DefaultUserAgent)
	}
	req.Header.Set("Cache-Control", "no-store")

	client := p.follow
	if opts.Redirect == RedirectManual {
		client = p.manual
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		FinalURL:   url,
		Elapsed:    elapsed,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}

	if opts.ReadBody && method != http.MethodHead {
		limit := opts.MaxBody
		if limit <= 0 {
			limit = maxAssetBody
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, limit))
		if readErr != nil {
			return nil, readErr
		}
		result.Body = body
		result.Elapsed = time.Since(start)
	}

	return result, nil
}

// HeadThenGet issues a HEAD and falls back to GET when HEAD is unavailable
// (405/501), failed with a non-abort error, or — with FallbackOnNonOK —
// returned any non-2xx/3xx. An abort on the HEAD is returned as is.
func (p *Prober) HeadThenGet(ctx context.Context, url string, opts Options) (*Result, error) {
	headOpts := opts
	headOpts.Method = http.MethodHead
	headOpts.ReadBody = false

	res, err := p.Fetch(ctx, url, headOpts)
	if err == nil && !headNeedsFallback(res.StatusCode, opts.FallbackOnNonOK) {
		return res, nil
	}
	if err != nil && IsAbort(err) {
		return nil, err
	}

	getOpts := opts
	getOpts.Method = http.MethodGet
	return p.Fetch(ctx, url, getOpts)
}

func headNeedsFallback(status int, fallbackOnNonOK bool) bool {
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		return true
	}
	if fallbackOnNonOK && (status < 200 || status >= 400) {
		return true
	}
	return false
}

// IsAbort reports whether err is a deadline/cancellation abort.
func IsAbort(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "Client.Timeout exceeded")
}

// transientMarkers is the "transient network" error family eligible for retry.
var transientMarkers = []string{
	"connection reset",
	"connection refused",
	"no such host",
	"network is unreachable",
	"host is unreachable",
	"i/o timeout",
	"tls handshake timeout",
	"EOF",
}

// IsTransient reports whether err looks like a recoverable network failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
