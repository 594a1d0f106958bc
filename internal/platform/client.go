package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/httpclient"
	"github.com/utafrali/sixty60/pkg/telemetry"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Host names one of the platform's backends.
type Host string

const (
	HostBFF     Host = "bff"
	HostDSL     Host = "dsl"
	HostAuth    Host = "auth"
	HostCatalog Host = "catalog"
	HostOrders  Host = "orders"
)

// Hosts lists every backend, in handshake order.
var Hosts = []Host{HostBFF, HostDSL, HostAuth, HostCatalog, HostOrders}

// Endpoints holds the base URL of every backend.
type Endpoints struct {
	BFF     string
	DSL     string
	Auth    string
	Catalog string
	Orders  string
}

func (e Endpoints) base(h Host) string {
	switch h {
	case HostBFF:
		return e.BFF
	case HostDSL:
		return e.DSL
	case HostAuth:
		return e.Auth
	case HostCatalog:
		return e.Catalog
	case HostOrders:
		return e.Orders
	}
	return ""
}

// Credentials are the static keys the mobile app ships with.
type Credentials struct {
	APIKey       string
	AuthAPIKey   string
	ProfileToken string
}

// AppIdentity is the app version the client presents itself as.
type AppIdentity struct {
	Version string
	Build   string
}

// Options configures a Client.
type Options struct {
	Endpoints   Endpoints
	Credentials Credentials
	App         AppIdentity
	DeviceID    string
}

// Request describes one platform call.
type Request struct {
	Host     Host
	Method   string
	Path     string
	Endpoint string // stable name for logs, spans and metrics
	Query    url.Values
	Header   http.Header
	Body     any // JSON-encoded when non-nil
}

// Client sends requests to the platform backends. Each host has its own
// HTTPDoer so a failing backend trips only its own breaker.
type Client struct {
	opts   Options
	doers  map[Host]HTTPDoer
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewClient creates a platform client. doers must have an entry for every host the caller uses.
func NewClient(opts Options, doers map[Host]HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		opts:   opts,
		doers:  doers,
		logger: logger,
		tracer: telemetry.Tracer("sixty60/platform"),
		now:    time.Now,
	}
}

// Credentials returns the static keys the client was built with.
func (c *Client) Credentials() Credentials {
	return c.opts.Credentials
}

// Now returns the client's clock reading. Product listing requests carry it as a cache buster.
func (c *Client) Now() time.Time {
	return c.now()
}

// Call sends req and decodes the JSON response into out. A *json.RawMessage
// receives the raw body; an empty success body yields "{}". Non-2xx
// responses come back as *httpclient.StatusError.
func (c *Client) Call(ctx context.Context, req Request, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "platform."+req.Endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("platform.host", string(req.Host)),
			attribute.String("http.method", req.Method),
		),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	doer, ok := c.doers[req.Host]
	if !ok {
		return apperrors.Internal(fmt.Errorf("no transport configured for host %q", req.Host))
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := doer.Do(httpclient.WithEndpoint(ctx, req.Endpoint), httpReq)
	if err != nil {
		return c.transportError(req, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.DebugContext(ctx, "platform call",
		slog.String("endpoint", req.Endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, req.Endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", apperrors.ErrTransport, req.Endpoint, err)
	}
	return decode(req.Endpoint, body, out)
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := strings.TrimRight(c.opts.Endpoints.base(req.Host), "/") + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", req.Endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.Endpoint, err)
	}
	for key, values := range req.Header {
		httpReq.Header[key] = values
	}
	return httpReq, nil
}

func (c *Client) transportError(req Request, err error) error {
	var statusErr *httpclient.StatusError
	switch {
	case errors.As(err, &statusErr):
		statusErr.Service = req.Endpoint
		return statusErr
	case errors.Is(err, httpclient.ErrCircuitOpen):
		return apperrors.ServiceUnavailable(fmt.Sprintf("%s is refusing calls after repeated failures", req.Host)).
			AtStep(req.Endpoint).WithCause(err)
	default:
		return fmt.Errorf("%w: call %s: %w", apperrors.ErrTransport, req.Endpoint, err)
	}
}

func decode(endpoint string, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", apperrors.ErrTransport, endpoint, err)
	}
	return nil
}
