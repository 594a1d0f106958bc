package stores

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/internal/platform"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/telemetry"
)

const stepResolveStores = "resolve_stores"

// Caller is the slice of the platform client the resolver needs.
type Caller interface {
	Call(ctx context.Context, req platform.Request, out any) error
	Headers(id platform.Identity, opts ...platform.HeaderOption) http.Header
}

// Coordinates is a delivery location.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Resolver maps a delivery location to the stores that serve it.
type Resolver struct {
	client Caller
	coords Coordinates
	logger *slog.Logger
	tracer trace.Tracer
}

// NewResolver creates a resolver that uses coords when no location is given.
func NewResolver(client Caller, coords Coordinates, logger *slog.Logger) *Resolver {
	return &Resolver{
		client: client,
		coords: coords,
		logger: logger,
		tracer: telemetry.Tracer("sixty60/stores"),
	}
}

// Resolve returns the store contexts for the configured location.
func (r *Resolver) Resolve(ctx context.Context, session domain.Session) ([]domain.StoreContext, error) {
	return r.ResolveAt(ctx, session, r.coords)
}

// ResolveAt returns the store contexts serving coords. Entries without a
// store id are dropped; an empty result is a StoreResolution error.
func (r *Resolver) ResolveAt(ctx context.Context, session domain.Session, coords Coordinates) (_ []domain.StoreContext, err error) {
	ctx, span := r.tracer.Start(ctx, "stores.Resolve", trace.WithAttributes(
		attribute.Float64("latitude", coords.Latitude),
		attribute.Float64("longitude", coords.Longitude),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	var resp struct {
		Items []domain.StoreContext `json:"items"`
	}
	err = r.client.Call(ctx, platform.Request{
		Host:     platform.HostCatalog,
		Method:   http.MethodPost,
		Path:     "/api/v3/store-contexts",
		Endpoint: "store-contexts",
		Header: r.client.Headers(platform.Identity{
			Token:      session.AccessToken,
			Phone:      session.Phone,
			UserID:     session.UserID,
			CustomerID: session.CustomerID,
			Email:      session.Email,
		}),
		Body: coords,
	}, &resp)
	if err != nil {
		return nil, err
	}

	contexts := make([]domain.StoreContext, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.StoreID != "" {
			contexts = append(contexts, item)
		}
	}
	if len(contexts) == 0 {
		return nil, apperrors.StoreResolution("no store contexts returned for the delivery location").AtStep(stepResolveStores)
	}

	span.SetAttributes(attribute.Int("stores.count", len(contexts)))
	r.logger.DebugContext(ctx, "stores resolved", slog.Int("count", len(contexts)))
	return contexts, nil
}

// StoreIDs resolves the store contexts and returns only their ids.
func (r *Resolver) StoreIDs(ctx context.Context, session domain.Session) ([]string, error) {
	contexts, err := r.Resolve(ctx, session)
	if err != nil {
		return nil, err
	}
	return domain.StoreIDs(contexts), nil
}
