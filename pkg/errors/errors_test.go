package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrProfile,
		ErrStoreResolution, ErrTransport, ErrServiceUnavail, ErrInternal,
		ErrOTPRejected,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestErrOTPRejected_IsUnauthorized(t *testing.T) {
	assert.True(t, errors.Is(ErrOTPRejected, ErrUnauthorized))
	assert.False(t, errors.Is(ErrUnauthorized, ErrOTPRejected))
}

// --- AppError behavior ---

func TestAppError_ErrorString(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "cart not found"}
	assert.Equal(t, "NOT_FOUND: cart not found", appErr.Error())
}

func TestAppError_ErrorString_WithStepAndCause(t *testing.T) {
	appErr := Unauthorized("no token").AtStep("acquire_service_token").WithCause(fmt.Errorf("boom"))
	assert.Equal(t, "AUTH_FAILED: no token (step acquire_service_token): boom", appErr.Error())
}

func TestAppError_UnwrapsSentinelAndCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	appErr := StoreResolution("no stores").WithCause(cause)

	assert.True(t, errors.Is(appErr, ErrStoreResolution))
	assert.True(t, errors.Is(appErr, cause))
	assert.Equal(t, cause, appErr.Cause())
}

func TestAppError_AtStep_DoesNotMutateOriginal(t *testing.T) {
	base := InvalidInput("phone is required")
	tagged := base.AtStep("resolve_customer")

	assert.Empty(t, base.Step)
	assert.Equal(t, "resolve_customer", tagged.Step)
}

// --- Constructor functions ---

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		sentinel error
	}{
		{"not found", NotFound("product", "p-1"), "NOT_FOUND", ErrNotFound},
		{"not foundf", NotFoundf("no cart to update"), "NOT_FOUND", ErrNotFound},
		{"invalid input", InvalidInput("bad phone"), "INVALID_INPUT", ErrInvalidInput},
		{"unauthorized", Unauthorized("no token"), "AUTH_FAILED", ErrUnauthorized},
		{"otp rejected", OTPRejected("wrong code"), "OTP_REJECTED", ErrOTPRejected},
		{"profile", ProfileUnresolved("no email"), "PROFILE_UNRESOLVED", ErrProfile},
		{"stores", StoreResolution("empty"), "STORE_RESOLUTION_FAILED", ErrStoreResolution},
		{"unavailable", ServiceUnavailable("breaker open"), "SERVICE_UNAVAILABLE", ErrServiceUnavail},
		{"internal", Internal(fmt.Errorf("segfault")), "INTERNAL_ERROR", ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("product", "abc-123")
	assert.Contains(t, err.Message, "product")
	assert.Contains(t, err.Message, "abc-123")
}

func TestOTPRejected_MatchesUnauthorized(t *testing.T) {
	err := OTPRejected("code expired")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, errors.Is(err, ErrOTPRejected))
}

// --- Code ---

func TestCode_WrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ProfileUnresolved("missing"))
	assert.Equal(t, "PROFILE_UNRESOLVED", Code(wrapped))
}

func TestCode_PlainError(t *testing.T) {
	assert.Empty(t, Code(fmt.Errorf("unknown")))
}

// --- AtStep ---

func TestAtStepFunc_TagsAppError(t *testing.T) {
	err := AtStep(StoreResolution("empty"), "resolve_stores")

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "resolve_stores", appErr.Step)
}

func TestAtStepFunc_KeepsExistingStep(t *testing.T) {
	err := AtStep(NotFoundf("no cart").AtStep("select_cart"), "update_carts")

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "select_cart", appErr.Step)
}

func TestAtStepFunc_PrefixesPlainError(t *testing.T) {
	cause := fmt.Errorf("%w: connection reset", ErrTransport)
	err := AtStep(cause, "fetch_carts")

	assert.Equal(t, "fetch_carts: transport error: connection reset", err.Error())
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Nil(t, AtStep(nil, "fetch_carts"))
}
