package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/internal/platform"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/httpclient"
	"github.com/utafrali/sixty60/pkg/logger"
	"github.com/utafrali/sixty60/pkg/telemetry"
)

// Handshake step names, carried by every error a step returns.
const (
	StepServiceToken    = "acquire_service_token"
	StepResolveCustomer = "resolve_customer"
	StepRequestOTP      = "request_otp"
	StepVerifyOTP       = "verify_otp"
	StepResolveProfile  = "resolve_profile"
	StepResolveStores   = "resolve_stores"
)

// Caller is the slice of the platform client the handshake needs.
type Caller interface {
	Call(ctx context.Context, req platform.Request, out any) error
	Headers(id platform.Identity, opts ...platform.HeaderOption) http.Header
	Credentials() platform.Credentials
}

// StoreResolver resolves the stores serving a session's delivery location.
type StoreResolver interface {
	StoreIDs(ctx context.Context, session domain.Session) ([]string, error)
}

// Tokens is the result of a successful OTP verification.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Profile is the user identity resolved after OTP verification.
type Profile struct {
	UserID string
	Email  string
}

// Handshake runs the ordered token exchange that turns a phone number and a
// one-time code into a session.
type Handshake struct {
	client Caller
	stores StoreResolver
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandshake creates a new handshake.
func NewHandshake(client Caller, stores StoreResolver, logger *slog.Logger) *Handshake {
	return &Handshake{
		client: client,
		stores: stores,
		logger: logger,
		tracer: telemetry.Tracer("sixty60/auth"),
	}
}

// AcquireServiceToken fetches the anonymous bootstrap token.
func (h *Handshake) AcquireServiceToken(ctx context.Context) (_ string, err error) {
	ctx, span := h.tracer.Start(ctx, "auth."+StepServiceToken)
	defer func() { telemetry.EndSpan(span, err) }()

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err = h.client.Call(ctx, platform.Request{
		Host:     platform.HostBFF,
		Method:   http.MethodPost,
		Path:     "/api/v1/token/dsl",
		Endpoint: "token.dsl",
		Header:   http.Header{"Content-Type": []string{platform.ContentTypeForm}},
	}, &resp)
	if err != nil {
		return "", stepError(StepServiceToken, err)
	}
	if resp.AccessToken == "" {
		return "", apperrors.Unauthorized("no access token from the service token endpoint").AtStep(StepServiceToken)
	}

	h.logger.DebugContext(ctx, "service token acquired")
	return resp.AccessToken, nil
}

// ResolveCustomer looks up the platform customer id for phone.
func (h *Handshake) ResolveCustomer(ctx context.Context, phone, serviceToken string) (_ string, err error) {
	phone, err = domain.NormalizePhone(phone)
	if err != nil {
		return "", err
	}

	ctx, span := h.tracer.Start(ctx, "auth."+StepResolveCustomer)
	defer func() { telemetry.EndSpan(span, err) }()

	var resp struct {
		Response struct {
			UID string `json:"uid"`
		} `json:"response"`
	}
	err = h.client.Call(ctx, platform.Request{
		Host:     platform.HostDSL,
		Method:   http.MethodGet,
		Path:     "/users/verify",
		Endpoint: "users.verify",
		Header: h.client.Headers(
			platform.Identity{Token: serviceToken, Phone: phone},
			platform.WithAPIKey(h.client.Credentials().APIKey),
		),
	}, &resp)
	if err != nil {
		return "", stepError(StepResolveCustomer, err)
	}
	if resp.Response.UID == "" {
		return "", apperrors.Unauthorized("no customer id returned for this phone number").AtStep(StepResolveCustomer)
	}

	h.logger.DebugContext(ctx, "customer resolved", logger.Masked("phone", phone))
	return resp.Response.UID, nil
}

// RequestOtp asks the platform to send a one-time code to phone. Every call
// issues a new reference and invalidates the previous one.
func (h *Handshake) RequestOtp(ctx context.Context, phone, serviceToken, customerID string) (_ string, err error) {
	phone, err = domain.NormalizePhone(phone)
	if err != nil {
		return "", err
	}

	ctx, span := h.tracer.Start(ctx, "auth."+StepRequestOTP)
	defer func() { telemetry.EndSpan(span, err) }()

	var resp struct {
		Response struct {
			Reference string `json:"reference"`
		} `json:"response"`
	}
	err = h.client.Call(ctx, platform.Request{
		Host:     platform.HostDSL,
		Method:   http.MethodGet,
		Path:     "/users/loginbymobile",
		Endpoint: "users.loginbymobile",
		Query:    url.Values{"mobileNumber": []string{phone}},
		Header: h.client.Headers(
			platform.Identity{Token: serviceToken, Phone: phone, CustomerID: customerID},
			platform.WithAPIKey(h.client.Credentials().AuthAPIKey),
		),
	}, &resp)
	if err != nil {
		return "", stepError(StepRequestOTP, err)
	}
	if resp.Response.Reference == "" {
		return "", apperrors.Unauthorized("no OTP reference returned").AtStep(StepRequestOTP)
	}

	h.logger.InfoContext(ctx, "otp requested", logger.Masked("phone", phone))
	return resp.Response.Reference, nil
}

type otpTarget struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
	Reference  string `json:"reference"`
}

type verifyOtpRequest struct {
	Target otpTarget `json:"target"`
	OTP    string    `json:"otp"`
}

// VerifyOtp exchanges the code the user received for user tokens. A code the
// platform refuses comes back as ErrOTPRejected.
func (h *Handshake) VerifyOtp(ctx context.Context, phone, reference, code, serviceToken, customerID string) (_ Tokens, err error) {
	if reference == "" {
		return Tokens{}, apperrors.Unauthorized("no OTP reference, request an OTP first").AtStep(StepVerifyOTP)
	}
	phone, err = domain.NormalizePhone(phone)
	if err != nil {
		return Tokens{}, err
	}

	ctx, span := h.tracer.Start(ctx, "auth."+StepVerifyOTP)
	defer func() { telemetry.EndSpan(span, err) }()

	var resp struct {
		Response struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"response"`
	}
	err = h.client.Call(ctx, platform.Request{
		Host:     platform.HostDSL,
		Method:   http.MethodPost,
		Path:     "/otp/loginbymobile/verify",
		Endpoint: "otp.verify",
		Header: h.client.Headers(
			platform.Identity{Token: serviceToken, Phone: phone, CustomerID: customerID},
			platform.WithAPIKey(h.client.Credentials().AuthAPIKey),
		),
		Body: verifyOtpRequest{
			Target: otpTarget{Type: "SMS", Identifier: phone, Reference: reference},
			OTP:    code,
		},
	}, &resp)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && httpclient.IsClientError(statusErr.StatusCode) {
			return Tokens{}, apperrors.OTPRejected("the code was not accepted, check it or request a new one").
				AtStep(StepVerifyOTP).WithCause(err)
		}
		return Tokens{}, stepError(StepVerifyOTP, err)
	}
	if resp.Response.AccessToken == "" {
		return Tokens{}, apperrors.OTPRejected("no access token returned for this code").AtStep(StepVerifyOTP)
	}

	h.logger.InfoContext(ctx, "otp verified", logger.Masked("phone", phone))
	return Tokens{
		AccessToken:  resp.Response.AccessToken,
		RefreshToken: resp.Response.RefreshToken,
	}, nil
}

// ResolveProfile fetches the user id and email for a verified customer.
func (h *Handshake) ResolveProfile(ctx context.Context, customerID, accessToken, phone string) (_ Profile, err error) {
	ctx, span := h.tracer.Start(ctx, "auth."+StepResolveProfile)
	defer func() { telemetry.EndSpan(span, err) }()

	var resp struct {
		UserProfile struct {
			ID         string `json:"id"`
			Identifier string `json:"identifier"`
			Email      string `json:"email"`
		} `json:"userProfile"`
	}
	err = h.client.Call(ctx, platform.Request{
		Host:     platform.HostAuth,
		Method:   http.MethodGet,
		Path:     "/customers/" + url.PathEscape(customerID) + "/customer-profile/v2/" + url.PathEscape(accessToken),
		Endpoint: "customer-profile",
		Header: h.client.Headers(
			platform.Identity{Token: accessToken, Phone: phone},
			platform.WithBearer(h.client.Credentials().ProfileToken),
		),
	}, &resp)
	if err != nil {
		return Profile{}, stepError(StepResolveProfile, err)
	}

	profile := Profile{UserID: resp.UserProfile.ID, Email: resp.UserProfile.Email}
	if profile.UserID == "" {
		profile.UserID = resp.UserProfile.Identifier
	}
	if profile.UserID == "" || profile.Email == "" {
		return Profile{}, apperrors.ProfileUnresolved("profile has no user id or email").AtStep(StepResolveProfile)
	}

	h.logger.DebugContext(ctx, "profile resolved", slog.String("user_id", profile.UserID))
	return profile, nil
}

// ResolveStores returns the ids of the stores serving session.
func (h *Handshake) ResolveStores(ctx context.Context, session domain.Session) (_ []string, err error) {
	ctx, span := h.tracer.Start(ctx, "auth."+StepResolveStores)
	defer func() { telemetry.EndSpan(span, err) }()

	ids, err := h.stores.StoreIDs(ctx, session)
	if err != nil {
		return nil, stepError(StepResolveStores, err)
	}
	if len(ids) == 0 {
		return nil, apperrors.StoreResolution("no stores serve the delivery location").AtStep(StepResolveStores)
	}
	return ids, nil
}

// stepError tags err with the step that produced it.
func stepError(step string, err error) error {
	return apperrors.AtStep(err, step)
}
