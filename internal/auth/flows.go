package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/utafrali/sixty60/internal/domain"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/logger"
)

// Result is a completed handshake: the session plus the bootstrap values
// that are persisted alongside it.
type Result struct {
	Session      domain.Session
	ServiceToken string
	Reference    string
}

// State returns the document to persist for r.
func (r *Result) State() domain.StoredState {
	return domain.NewStoredState(r.Session, r.ServiceToken, r.Reference)
}

// Login runs the whole handshake in one go for a code whose reference the
// caller already holds.
func (h *Handshake) Login(ctx context.Context, phone, reference, code string) (*Result, error) {
	phone, err := domain.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	serviceToken, err := h.AcquireServiceToken(ctx)
	if err != nil {
		return nil, err
	}
	customerID, err := h.ResolveCustomer(ctx, phone, serviceToken)
	if err != nil {
		return nil, err
	}

	return h.complete(ctx, domain.PendingAuth{
		Phone:        phone,
		CustomerID:   customerID,
		ServiceToken: serviceToken,
		Reference:    reference,
	}, code)
}

// StartOTP runs the handshake up to the point where the user has to read a
// code from their phone.
func (h *Handshake) StartOTP(ctx context.Context, phone string) (domain.PendingAuth, error) {
	phone, err := domain.NormalizePhone(phone)
	if err != nil {
		return domain.PendingAuth{}, err
	}

	serviceToken, err := h.AcquireServiceToken(ctx)
	if err != nil {
		return domain.PendingAuth{}, err
	}
	customerID, err := h.ResolveCustomer(ctx, phone, serviceToken)
	if err != nil {
		return domain.PendingAuth{}, err
	}
	reference, err := h.RequestOtp(ctx, phone, serviceToken, customerID)
	if err != nil {
		return domain.PendingAuth{}, err
	}

	return domain.PendingAuth{
		Phone:        phone,
		CustomerID:   customerID,
		ServiceToken: serviceToken,
		Reference:    reference,
	}, nil
}

// CompleteOTP finishes a handshake started by StartOTP. phone must match the
// phone the OTP was requested for.
func (h *Handshake) CompleteOTP(ctx context.Context, pending domain.PendingAuth, phone, code string) (*Result, error) {
	phone, err := domain.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if pending.Phone == "" || pending.CustomerID == "" || pending.ServiceToken == "" {
		return nil, apperrors.Unauthorized("no pending login, request an OTP first").AtStep(StepVerifyOTP)
	}
	if pending.Phone != phone {
		return nil, apperrors.Unauthorized("phone number does not match the pending OTP request").AtStep(StepVerifyOTP)
	}
	return h.complete(ctx, pending, code)
}

func (h *Handshake) complete(ctx context.Context, pending domain.PendingAuth, code string) (*Result, error) {
	tokens, err := h.VerifyOtp(ctx, pending.Phone, pending.Reference, code, pending.ServiceToken, pending.CustomerID)
	if err != nil {
		return nil, err
	}
	profile, err := h.ResolveProfile(ctx, pending.CustomerID, tokens.AccessToken, pending.Phone)
	if err != nil {
		return nil, err
	}

	session := domain.Session{
		Phone:        pending.Phone,
		CustomerID:   pending.CustomerID,
		UserID:       profile.UserID,
		Email:        profile.Email,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}
	storeIDs, err := h.ResolveStores(ctx, session)
	if err != nil {
		return nil, err
	}
	session.StoreIDs = storeIDs

	h.logger.InfoContext(ctx, "login completed",
		logger.Masked("phone", session.Phone),
		slog.String("user_id", session.UserID),
		slog.Int("stores", len(storeIDs)),
	)
	return &Result{
		Session:      session,
		ServiceToken: pending.ServiceToken,
		Reference:    pending.Reference,
	}, nil
}

// Hydrate fills whatever a stored session is missing. A complete state is
// returned as is with changed == false and no network calls.
func (h *Handshake) Hydrate(ctx context.Context, state domain.StoredState) (_ domain.StoredState, changed bool, err error) {
	if state.PhoneE164 == "" {
		return state, false, apperrors.Unauthorized("no saved session, run login first")
	}

	if state.CustomerID == "" {
		if state.BFFToken == "" {
			token, err := h.AcquireServiceToken(ctx)
			if err != nil {
				return state, false, err
			}
			state.BFFToken = token
		}
		customerID, err := h.ResolveCustomer(ctx, state.PhoneE164, state.BFFToken)
		if err != nil {
			return state, false, err
		}
		state.CustomerID = customerID
		changed = true
	}

	if state.UserAccessToken == "" {
		return state, changed, apperrors.Unauthorized("missing user access token, run login first")
	}
	h.warnIfExpired(ctx, state.UserAccessToken)

	if state.UserID == "" || state.Email == "" {
		profile, err := h.ResolveProfile(ctx, state.CustomerID, state.UserAccessToken, state.PhoneE164)
		if err != nil {
			return state, changed, err
		}
		state.UserID = profile.UserID
		state.Email = profile.Email
		changed = true
	}

	if len(state.StoreIDs) == 0 {
		ids, err := h.ResolveStores(ctx, state.Session())
		if err != nil {
			return state, changed, err
		}
		state.StoreIDs = ids
		changed = true
	}

	if changed {
		h.logger.DebugContext(ctx, "session hydrated")
	}
	return state, changed, nil
}

func (h *Handshake) warnIfExpired(ctx context.Context, token string) {
	exp, ok := TokenExpiry(token)
	if !ok {
		return
	}
	if time.Now().After(exp) {
		h.logger.WarnContext(ctx, "user access token has expired, run login again if calls are refused",
			slog.Time("expired_at", exp),
		)
	}
}
