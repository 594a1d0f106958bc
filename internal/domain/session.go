package domain

import (
	"time"

	apperrors "github.com/utafrali/sixty60/pkg/errors"
)

// Session is the authenticated identity plus the routing facts every commerce
// call needs. A complete session has every field but RefreshToken set.
type Session struct {
	Phone        string
	CustomerID   string
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	StoreIDs     []string
}

// Validate reports the first missing field as the error class that would
// have produced it.
func (s Session) Validate() error {
	switch {
	case s.AccessToken == "":
		return apperrors.Unauthorized("missing user access token, run login first")
	case s.Phone == "" || s.CustomerID == "":
		return apperrors.Unauthorized("auth context is incomplete, run login first")
	case s.UserID == "" || s.Email == "":
		return apperrors.ProfileUnresolved("session has no user id or email")
	case len(s.StoreIDs) == 0:
		return apperrors.StoreResolution("session has no store ids")
	}
	return nil
}

// PendingAuth is the state between requesting an OTP and verifying it.
type PendingAuth struct {
	Phone        string
	CustomerID   string
	ServiceToken string
	Reference    string
}

// Ready reports whether the pending state carries everything VerifyOtp needs.
func (p PendingAuth) Ready() bool {
	return p.Phone != "" && p.CustomerID != "" && p.ServiceToken != "" && p.Reference != ""
}

// StoredState is the persisted session document. Field names match the
// auth.json files written by earlier releases so those keep loading.
type StoredState struct {
	PhoneE164       string    `json:"phoneE164"`
	BFFToken        string    `json:"bffToken,omitempty"`
	UserAccessToken string    `json:"userAccessToken,omitempty"`
	RefreshToken    string    `json:"refreshToken,omitempty"`
	OTPReference    string    `json:"otpReference,omitempty"`
	CustomerID      string    `json:"customerId,omitempty"`
	UserID          string    `json:"userId,omitempty"`
	Email           string    `json:"email,omitempty"`
	StoreIDs        []string  `json:"storeIds,omitempty"`
	SavedAt         time.Time `json:"savedAt"`
}

// Session projects the stored state onto a session context.
func (s StoredState) Session() Session {
	return Session{
		Phone:        s.PhoneE164,
		CustomerID:   s.CustomerID,
		UserID:       s.UserID,
		Email:        s.Email,
		AccessToken:  s.UserAccessToken,
		RefreshToken: s.RefreshToken,
		StoreIDs:     append([]string(nil), s.StoreIDs...),
	}
}

// Pending projects the stored state onto the pending OTP fields.
func (s StoredState) Pending() PendingAuth {
	return PendingAuth{
		Phone:        s.PhoneE164,
		CustomerID:   s.CustomerID,
		ServiceToken: s.BFFToken,
		Reference:    s.OTPReference,
	}
}

// IsComplete reports whether the state can be used without hydration.
func (s StoredState) IsComplete() bool {
	return s.Session().Validate() == nil
}

// MissingFields lists the session fields hydration would have to fill.
func (s StoredState) MissingFields() []string {
	var missing []string
	if s.CustomerID == "" {
		missing = append(missing, "customerId")
	}
	if s.UserAccessToken == "" {
		missing = append(missing, "userAccessToken")
	}
	if s.UserID == "" {
		missing = append(missing, "userId")
	}
	if s.Email == "" {
		missing = append(missing, "email")
	}
	if len(s.StoreIDs) == 0 {
		missing = append(missing, "storeIds")
	}
	return missing
}

// WithPending overlays pending OTP fields, keeping everything else.
func (s StoredState) WithPending(p PendingAuth) StoredState {
	s.PhoneE164 = p.Phone
	s.BFFToken = p.ServiceToken
	s.CustomerID = p.CustomerID
	s.OTPReference = p.Reference
	return s
}

// NewStoredState builds the document persisted after a completed handshake.
func NewStoredState(session Session, serviceToken, reference string) StoredState {
	return StoredState{
		PhoneE164:       session.Phone,
		BFFToken:        serviceToken,
		UserAccessToken: session.AccessToken,
		RefreshToken:    session.RefreshToken,
		OTPReference:    reference,
		CustomerID:      session.CustomerID,
		UserID:          session.UserID,
		Email:           session.Email,
		StoreIDs:        append([]string(nil), session.StoreIDs...),
	}
}
