// Package probe checks whether bookmarked URLs still respond.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"marksweep/internal/metrics"
	"marksweep/internal/models"
	"marksweep/internal/retry"
)

// InvalidURLMessage is reported for URLs that are never sent over the network.
const InvalidURLMessage = "Invalid URL format"

const (
	DefaultHeadTimeout = 10 * time.Second
	DefaultGetTimeout  = 15 * time.Second
	DefaultAttempts    = 2

	userAgent    = "marksweep/1.0 (+bookmark accessibility check)"
	maxBodyDrain = 64 << 10
)

// HTTPDoer is the subset of *http.Client used by the prober.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Prober issues a HEAD request and falls back to GET when it fails.
type Prober struct {
	client      HTTPDoer
	exec        *retry.Executor
	headTimeout time.Duration
	getTimeout  time.Duration
	attempts    int
}

// Option customizes a Prober.
type Option func(*Prober)

// WithTimeouts overrides the per-request HEAD and GET timeouts.
func WithTimeouts(head, get time.Duration) Option {
	return func(p *Prober) {
		p.headTimeout = head
		p.getTimeout = get
	}
}

// WithAttempts overrides the retry bound.
func WithAttempts(n int) Option {
	return func(p *Prober) { p.attempts = n }
}

// New creates a Prober. A nil client uses http.Client defaults.
func New(client HTTPDoer, exec *retry.Executor, opts ...Option) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	p := &Prober{
		client:      client,
		exec:        exec,
		headTimeout: DefaultHeadTimeout,
		getTimeout:  DefaultGetTimeout,
		attempts:    DefaultAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check probes rawURL. It never returns an error: every failure is folded into
// the result. Network-class failures are retried; stable negatives are not.
func (p *Prober) Check(ctx context.Context, rawURL string) models.AccessibilityResult {
	if !ValidURL(rawURL) {
		return models.AccessibilityResult{Accessible: false, Error: InvalidURLMessage, Permanent: true}
	}

	start := time.Now()
	res, err := retry.Do(ctx, p.exec, "URL-Check:"+rawURL, p.attempts, func(ctx context.Context) (models.AccessibilityResult, error) {
		return p.attempt(ctx, rawURL)
	})
	if err != nil {
		res = classify(err)
	}
	metrics.ProbeDuration.WithLabelValues(strconv.FormatBool(res.Accessible)).Observe(time.Since(start).Seconds())
	return res
}

// attempt runs one HEAD-then-GET round. Transient failures come back as errors so
// the executor retries them; permanent ones are returned as a final result.
func (p *Prober) attempt(ctx context.Context, rawURL string) (models.AccessibilityResult, error) {
	status, headErr := p.request(ctx, http.MethodHead, rawURL, p.headTimeout)
	if headErr == nil {
		return models.AccessibilityResult{Accessible: true, Status: status, Method: http.MethodHead}, nil
	}
	log.Debugf("HEAD %s failed, trying GET: %v", rawURL, headErr)

	status, getErr := p.request(ctx, http.MethodGet, rawURL, p.getTimeout)
	if getErr == nil {
		return models.AccessibilityResult{Accessible: true, Status: status, Method: http.MethodGet}, nil
	}

	res := classify(getErr)
	if res.NetworkError || !res.Permanent {
		return res, getErr
	}
	return res, nil
}

func (p *Prober) request(ctx context.Context, method, rawURL string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode, Method: method}
	}
	return resp.StatusCode, nil
}

// ValidURL reports whether rawURL is an absolute http(s) URL with a host.
func ValidURL(rawURL string) bool {
	if rawURL == "" || !strings.HasPrefix(rawURL, "http") {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// StatusError is an HTTP response with a 4xx or 5xx status.
type StatusError struct {
	Code   int
	Method string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.Method, e.Code, http.StatusText(e.Code))
}

// classify maps a probe failure onto the permanent/network flags. Without a status
// code the distinction is a best guess and must not gate destructive actions.
func classify(err error) models.AccessibilityResult {
	res := models.AccessibilityResult{Accessible: false, Error: err.Error()}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		res.Status = statusErr.Code
		res.Method = statusErr.Method
		switch {
		case statusErr.Code == http.StatusTooManyRequests,
			statusErr.Code == http.StatusRequestTimeout,
			statusErr.Code >= http.StatusInternalServerError:
			res.Permanent = false
		default:
			res.Permanent = true
		}
		return res
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		res.Permanent = true
		return res
	}

	if isNetworkError(err) {
		res.NetworkError = true
		res.Permanent = false
		return res
	}

	res.Permanent = true
	return res
}

func isNetworkError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
