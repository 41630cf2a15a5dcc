package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/snaptrack/snaptrack/internal/client/images"
	"github.com/snaptrack/snaptrack/internal/client/metrics"
	"github.com/snaptrack/snaptrack/internal/common"
	"github.com/snaptrack/snaptrack/internal/logging"
)

const DefaultTimeout = 30 * time.Second

// Refresher obtains a new bearer token after the backend rejected the
// current one. An empty token with a nil error counts as a failed refresh.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) (string, error)

func (f RefreshFunc) Refresh(ctx context.Context) (string, error) { return f(ctx) }

// RequestOptions describes one call. An empty Method means GET. Body is
// marshalled to JSON unless it is a *Form.
type RequestOptions struct {
	Method  string
	Body    any
	Headers map[string]string
}

type Gateway struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	refresher Refresher
	images    images.Opener
	log       logging.Logger
	metrics   *metrics.Metrics

	mu    sync.RWMutex
	token string

	refreshing atomic.Bool
}

type Option func(*Gateway)

func WithHTTPClient(c *http.Client) Option { return func(g *Gateway) { g.http = c } }

// WithTimeout sets the per-request deadline. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithRefresher(r Refresher) Option { return func(g *Gateway) { g.refresher = r } }
func WithImageOpener(o images.Opener) Option { return func(g *Gateway) { g.images = o } }
func WithLogger(l logging.Logger) Option { return func(g *Gateway) { g.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(g *Gateway) { g.metrics = m } }

func New(baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		images:  images.NewRouter(nil),
		log:     logging.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	g.log = g.log.With("component", "gateway")
	return g
}

// SetAuthToken replaces the bearer token used by all subsequent requests.
// Requests already sent keep the headers they were sent with.
func (g *Gateway) SetAuthToken(token string) {
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
}

func (g *Gateway) ClearAuthToken() {
	g.SetAuthToken("")
}

func (g *Gateway) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// SetRefresher installs r. It must be called before the gateway is shared
// between goroutines.
func (g *Gateway) SetRefresher(r Refresher) {
	g.refresher = r
}

// Refreshing reports whether a token refresh is in flight.
func (g *Gateway) Refreshing() bool {
	return g.refreshing.Load()
}

// Request performs one logical call to endpoint (a path relative to the base
// URL) and returns the JSON body of the successful response. A 2xx response
// with an empty body yields nil.
func (g *Gateway) Request(ctx context.Context, endpoint string, opts RequestOptions) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return nil, g.failed(ctx, method, endpoint, &Error{Kind: KindClient, Message: msgInvalidBody, Err: err})
	}

	token := g.Token()
	status, respBody, gerr := g.send(ctx, method, endpoint, opts.Headers, body, contentType, token)
	if gerr != nil {
		return nil, g.failed(ctx, method, endpoint, gerr)
	}

	if status == http.StatusUnauthorized && token != "" {
		if fresh, ok := g.refresh(ctx); ok {
			status, respBody, gerr = g.send(ctx, method, endpoint, opts.Headers, body, contentType, fresh)
			if gerr != nil {
				return nil, g.failed(ctx, method, endpoint, gerr)
			}
		}
	}

	if status < 200 || status > 299 {
		return nil, g.failed(ctx, method, endpoint, classifyStatus(status, respBody))
	}

	g.metrics.Request(method, "ok")
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	if !json.Valid(respBody) {
		return nil, g.failed(ctx, method, endpoint, &Error{Kind: KindServer, Message: msgBadResponse, Status: status})
	}
	return json.RawMessage(respBody), nil
}

// refresh runs the refresh protocol. It returns false when another refresh
// is already in flight, no refresher is configured, or the refresher failed.
func (g *Gateway) refresh(ctx context.Context) (string, bool) {
	if g.refresher == nil {
		return "", false
	}
	if !g.refreshing.CompareAndSwap(false, true) {
		g.log.Debug(ctx, "token refresh already in flight")
		return "", false
	}
	// Must reset on every path, panics included, or 401 recovery stays off.
	defer g.refreshing.Store(false)

	token, err := g.refresher.Refresh(ctx)
	if err != nil || token == "" {
		g.metrics.Refresh("failed")
		g.log.Warn(ctx, "token refresh failed", "error", err)
		return "", false
	}

	g.SetAuthToken(token)
	g.metrics.Refresh("success")
	g.log.Info(ctx, "token refreshed")
	return token, true
}

func (g *Gateway) send(ctx context.Context, method, endpoint string, headers map[string]string,
	body []byte, contentType, token string) (int, []byte, *Error) {

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.url(endpoint), rdr)
	if err != nil {
		return 0, nil, &Error{Kind: KindClient, Message: msgInvalidBody, Err: err}
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set(common.HeaderContentType, contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if token != "" {
		req.Header.Set(common.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return 0, nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, classifyTransport(err)
	}
	return resp.StatusCode, b, nil
}

func (g *Gateway) url(endpoint string) string {
	return g.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func (g *Gateway) failed(ctx context.Context, method, endpoint string, e *Error) *Error {
	g.metrics.Request(method, string(e.Kind))
	g.log.Warn(ctx, "request failed",
		"method", method, "endpoint", endpoint, "status", e.Status, "kind", e.Kind, "error", e.Err)
	return e
}
