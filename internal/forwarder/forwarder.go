package forwarder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/endpoint-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/endpoint-gateway/internal/endpoint"
	"github.com/angeloszaimis/endpoint-gateway/internal/metrics"
)

// unknownLabel stands in for names absent from the snapshot so arbitrary
// request paths cannot blow up label cardinality.
const unknownLabel = "_unknown"

// SnapshotSource yields the active endpoint snapshot.
type SnapshotSource interface {
	Snapshot() *endpoint.Snapshot
}

// Recorder receives per-call metrics.
type Recorder interface {
	RecordForward(endpoint, outcome string, duration time.Duration)
	RecordForwardError(endpoint, kind string)
}

type Options struct {
	DefaultTimeout time.Duration
	DialTimeout    time.Duration
	FlushInterval  time.Duration
	MaxIdleConns   int

	// Transport overrides the pooled transport built from the options above.
	Transport http.RoundTripper
	// Breakers is optional; nil disables circuit breaking.
	Breakers *circuitbreaker.Registry
	Recorder Recorder
	Logger   *slog.Logger
}

// Forwarder relays requests to the upstream of a named endpoint. Each call
// is a single attempt; nothing is retried.
type Forwarder struct {
	store          SnapshotSource
	transport      http.RoundTripper
	defaultTimeout time.Duration
	flushInterval  time.Duration
	breakers       *circuitbreaker.Registry
	recorder       Recorder
	logger         *slog.Logger
}

// Response is an upstream response whose body has not been read yet. Close
// must be called to release the upstream connection.
type Response struct {
	StatusCode    int
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
	Endpoint      endpoint.Config
	Version       uint64

	cancel context.CancelFunc
}

// Close releases the upstream connection and the per-call context.
func (r *Response) Close() error {
	err := r.Body.Close()
	r.cancel()
	return err
}

func New(store SnapshotSource, opts Options) *Forwarder {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	transport := opts.Transport
	if transport == nil {
		transport = newTransport(opts.DialTimeout, opts.MaxIdleConns)
	}

	return &Forwarder{
		store:          store,
		transport:      transport,
		defaultTimeout: opts.DefaultTimeout,
		flushInterval:  opts.FlushInterval,
		breakers:       opts.Breakers,
		recorder:       opts.Recorder,
		logger:         opts.Logger,
	}
}

func newTransport(dialTimeout time.Duration, maxIdleConns int) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Forward resolves name against the active snapshot and issues r to that
// endpoint's target with the escaped subPath appended. The snapshot is read
// once, so the whole call uses one configuration version even if a reload
// lands meanwhile. On success the caller owns the returned Response.
func (f *Forwarder) Forward(r *http.Request, name, subPath string) (*Response, error) {
	start := time.Now()
	snap := f.store.Snapshot()

	cfg, ok := snap.Lookup(name)
	if !ok {
		f.fail(unknownLabel, start, ErrUnknownEndpoint)
		return nil, &Error{Endpoint: name, Kind: ErrUnknownEndpoint}
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	out := buildRequest(ctx, r, cfg, subPath)

	res, err := f.roundTrip(cfg, out, r.Context())
	if err != nil {
		cancel()

		kind := ErrCircuitOpen
		if !errors.Is(err, circuitbreaker.ErrOpen) {
			kind = classify(r.Context(), ctx, err)
		}

		f.fail(name, start, kind)
		f.logger.Debug("forward failed",
			slog.String("endpoint", name),
			slog.String("method", r.Method),
			slog.String("kind", kindLabel(kind)),
			slog.Any("err", err))

		return nil, &Error{Endpoint: name, Kind: kind, Err: err}
	}

	outcome := metrics.OutcomeSuccess
	if res.StatusCode >= http.StatusInternalServerError {
		outcome = metrics.OutcomeUpstream5xx
	}
	f.record(name, outcome, time.Since(start))

	removeHopHeaders(res.Header)

	return &Response{
		StatusCode:    res.StatusCode,
		Header:        res.Header,
		Body:          res.Body,
		ContentLength: res.ContentLength,
		Endpoint:      cfg,
		Version:       snap.Version(),
		cancel:        cancel,
	}, nil
}

func (f *Forwarder) roundTrip(cfg endpoint.Config, out *http.Request, inbound context.Context) (*http.Response, error) {
	call := func() (*http.Response, error) {
		res, err := f.transport.RoundTrip(out)
		if err != nil && errors.Is(inbound.Err(), context.Canceled) {
			// Keeps client disconnects from counting against the breaker.
			return nil, errors.Join(context.Canceled, err)
		}
		return res, err
	}

	if f.breakers == nil {
		return call()
	}

	return f.breakers.Execute(cfg.Name(), cfg.Target().String(), call)
}

func (f *Forwarder) fail(label string, start time.Time, kind error) {
	if f.recorder == nil {
		return
	}
	f.recorder.RecordForward(label, metrics.OutcomeFailure, time.Since(start))
	f.recorder.RecordForwardError(label, kindLabel(kind))
}

func (f *Forwarder) record(label, outcome string, d time.Duration) {
	if f.recorder == nil {
		return
	}
	f.recorder.RecordForward(label, outcome, d)
}

func buildRequest(ctx context.Context, in *http.Request, cfg endpoint.Config, subPath string) *http.Request {
	target := cfg.Target()

	targetURL := *target
	targetURL.RawPath = singleJoiningSlash(target.EscapedPath(), subPath)
	targetURL.Path = targetURL.RawPath
	if decoded, err := url.PathUnescape(targetURL.RawPath); err == nil {
		targetURL.Path = decoded
	}
	if targetURL.Path == targetURL.RawPath {
		targetURL.RawPath = ""
	}

	switch {
	case target.RawQuery == "":
		targetURL.RawQuery = in.URL.RawQuery
	case in.URL.RawQuery != "":
		targetURL.RawQuery = target.RawQuery + "&" + in.URL.RawQuery
	}

	body := in.Body
	if in.ContentLength == 0 || body == nil {
		body = http.NoBody
	}

	out := (&http.Request{
		Method:        in.Method,
		URL:           &targetURL,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header, len(in.Header)+4),
		Body:          body,
		ContentLength: in.ContentLength,
		Host:          target.Host,
	}).WithContext(ctx)

	for k, vv := range in.Header {
		out.Header[k] = append([]string(nil), vv...)
	}
	removeHopHeaders(out.Header)
	out.Header.Del("Host")
	// The transport recomputes it from ContentLength.
	out.Header.Del("Content-Length")

	for k, vv := range cfg.Headers() {
		out.Header[k] = vv
	}

	if clientIP, _, err := net.SplitHostPort(in.RemoteAddr); err == nil {
		if prior := out.Header.Get("X-Forwarded-For"); prior != "" {
			out.Header.Set("X-Forwarded-For", prior+", "+clientIP)
		} else {
			out.Header.Set("X-Forwarded-For", clientIP)
		}
	}

	if in.TLS != nil {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}
	out.Header.Set("X-Forwarded-Host", in.Host)

	if out.Header.Get("X-Request-Id") == "" {
		out.Header.Set("X-Request-Id", uuid.NewString())
	}

	// An explicit empty value stops the transport from adding its own.
	if _, ok := out.Header["User-Agent"]; !ok {
		out.Header.Set("User-Agent", "")
	}

	return out
}

// Relay writes the upstream status, headers and body to w. The body is
// streamed, never buffered whole. Once the status line is written errors can
// only be reported, not turned into an error response.
func (f *Forwarder) Relay(w http.ResponseWriter, res *Response) (int64, error) {
	dst := w.Header()
	for k, vv := range res.Header {
		dst[k] = append([]string(nil), vv...)
	}
	w.WriteHeader(res.StatusCode)

	flushInterval := f.flushInterval
	if res.ContentLength == -1 || isEventStream(res.Header) {
		flushInterval = -1
	}

	return copyBody(w, res.Body, flushInterval)
}

// copyBody copies src to w in chunks. A negative interval flushes after
// every chunk, zero only at the end, and a positive one at most once per
// interval.
func copyBody(w http.ResponseWriter, src io.Reader, interval time.Duration) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	lastFlush := time.Now()

	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				return written, writeErr
			}

			if interval < 0 || (interval > 0 && time.Since(lastFlush) >= interval) {
				rc.Flush()
				lastFlush = time.Now()
			}
		}

		if readErr == io.EOF {
			rc.Flush()
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func isEventStream(h http.Header) bool {
	return strings.HasPrefix(h.Get("Content-Type"), "text/event-stream")
}

// Hop-by-hop headers that should be removed
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(header http.Header) {
	// Headers named in Connection are hop-by-hop too.
	for _, value := range header.Values("Connection") {
		for _, token := range strings.Split(value, ",") {
			if token = strings.TrimSpace(token); token != "" {
				header.Del(token)
			}
		}
	}

	for _, h := range hopHeaders {
		header.Del(h)
	}
}

// singleJoiningSlash joins two URL paths with a single slash
func singleJoiningSlash(a, b string) string {
	if b == "" {
		return a
	}
	if a == "" {
		a = "/"
	}

	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
