// Package cli implements the sixty60 command line.
package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/utafrali/sixty60/internal/app"
	"github.com/utafrali/sixty60/internal/auth"
	"github.com/utafrali/sixty60/internal/basket"
	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/pkg/health"
	"github.com/utafrali/sixty60/pkg/pagination"
)

// SessionStore persists auth state between invocations.
type SessionStore interface {
	LoadState(ctx context.Context) (domain.StoredState, bool, error)
	SaveState(ctx context.Context, state domain.StoredState) error
	SavePending(ctx context.Context, pending domain.PendingAuth) error
}

// Authenticator runs the login handshake.
type Authenticator interface {
	StartOTP(ctx context.Context, phone string) (domain.PendingAuth, error)
	CompleteOTP(ctx context.Context, pending domain.PendingAuth, phone, code string) (*auth.Result, error)
	Login(ctx context.Context, phone, reference, code string) (*auth.Result, error)
	Hydrate(ctx context.Context, state domain.StoredState) (domain.StoredState, bool, error)
}

// ProductSearcher searches the catalog.
type ProductSearcher interface {
	Search(ctx context.Context, session domain.Session, query string, page pagination.Params) (json.RawMessage, error)
}

// OrderHistory fetches past orders.
type OrderHistory interface {
	History(ctx context.Context, session domain.Session) (json.RawMessage, error)
}

// BasketUpdater adds products to the basket.
type BasketUpdater interface {
	AddToBasket(ctx context.Context, session domain.Session, in basket.AddInput) (*basket.Result, error)
}

// SessionEvents announces completed logins.
type SessionEvents interface {
	PublishSessionAuthenticated(ctx context.Context, session domain.Session) error
}

// HealthChecker checks the session backend and the event brokers.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Runtime is everything a command needs. Tests build one from fakes.
type Runtime struct {
	Sessions SessionStore
	Auth     Authenticator
	Catalog  ProductSearcher
	Orders   OrderHistory
	Basket   BasketUpdater
	Events   SessionEvents
	Health   HealthChecker
	Prompt   Prompter
	Logger   *slog.Logger

	StateLocation string
	Timeout       time.Duration
	Now           func() time.Time

	// Close releases the runtime's resources. May be nil.
	Close func(ctx context.Context) error
}

// Factory builds the runtime for one command invocation.
type Factory func(ctx context.Context) (*Runtime, error)

// FromApp adapts a wired application to a command runtime.
func FromApp(a *app.App, logger *slog.Logger, prompt Prompter, timeout time.Duration) *Runtime {
	return &Runtime{
		Sessions:      a.Sessions,
		Auth:          a.Handshake,
		Catalog:       a.Catalog,
		Orders:        a.Orders,
		Basket:        a.Basket,
		Events:        a.Events,
		Health:        a.Health,
		Prompt:        prompt,
		Logger:        logger,
		StateLocation: a.StateLocation,
		Timeout:       timeout,
		Now:           time.Now,
		Close:         a.Close,
	}
}

func (rt *Runtime) now() time.Time {
	if rt.Now == nil {
		return time.Now()
	}
	return rt.Now()
}
