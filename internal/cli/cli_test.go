package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/sixty60/internal/auth"
	"github.com/utafrali/sixty60/internal/basket"
	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/internal/session"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/health"
	"github.com/utafrali/sixty60/pkg/pagination"
)

var anyCtx = mock.Anything

type fixture struct {
	t        *testing.T
	sessions *session.Manager
	auth     *mockAuth
	catalog  *mockSearcher
	orders   *mockOrders
	basket   *mockBasket
	events   *mockEvents
	prompt   *fakePrompter
	health   HealthChecker
	now      time.Time
	built    int
	closed   int
	stdout   bytes.Buffer
	stderr   bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	f := &fixture{
		t:        t,
		sessions: session.NewManager(session.NewFileStore(t.TempDir()), logger),
		auth:     &mockAuth{},
		catalog:  &mockSearcher{},
		orders:   &mockOrders{},
		basket:   &mockBasket{},
		events:   &mockEvents{},
		prompt:   &fakePrompter{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	t.Cleanup(func() {
		f.auth.AssertExpectations(t)
		f.catalog.AssertExpectations(t)
		f.orders.AssertExpectations(t)
		f.basket.AssertExpectations(t)
		f.events.AssertExpectations(t)
	})
	return f
}

func (f *fixture) runtime(context.Context) (*Runtime, error) {
	f.built++
	return &Runtime{
		Sessions:      f.sessions,
		Auth:          f.auth,
		Catalog:       f.catalog,
		Orders:        f.orders,
		Basket:        f.basket,
		Events:        f.events,
		Health:        f.health,
		Prompt:        f.prompt,
		Logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		StateLocation: "/state/auth.json",
		Timeout:       time.Minute,
		Now:           func() time.Time { return f.now },
		Close: func(context.Context) error {
			f.closed++
			return nil
		},
	}, nil
}

func (f *fixture) run(args ...string) int {
	f.stdout.Reset()
	f.stderr.Reset()
	root := NewRootCommand(f.runtime)
	root.SetOut(&f.stdout)
	root.SetErr(&f.stderr)
	return Execute(context.Background(), root, args)
}

func (f *fixture) saveState(state domain.StoredState) {
	f.t.Helper()
	require.NoError(f.t, f.sessions.SaveState(context.Background(), state))
}

func (f *fixture) loadState() domain.StoredState {
	f.t.Helper()
	state, found, err := f.sessions.LoadState(context.Background())
	require.NoError(f.t, err)
	require.True(f.t, found)
	return state
}

func testSession() domain.Session {
	return domain.Session{
		Phone:       "+27821234567",
		CustomerID:  "cust-1",
		UserID:      "user-1",
		Email:       "shopper@example.com",
		AccessToken: "access",
		StoreIDs:    []string{"s1", "s2"},
	}
}

func testPending() domain.PendingAuth {
	return domain.PendingAuth{
		Phone:        "+27821234567",
		CustomerID:   "cust-1",
		ServiceToken: "bff",
		Reference:    "ref-1",
	}
}

func testResult() *auth.Result {
	return &auth.Result{Session: testSession(), ServiceToken: "bff", Reference: "ref-1"}
}

// --- login ---

func TestRequestOTP_SavesPending(t *testing.T) {
	f := newFixture(t)
	f.auth.On("StartOTP", anyCtx, "0821234567").Return(testPending(), nil)

	require.Equal(t, 0, f.run("request-otp", "--phone", "0821234567"))

	assert.Equal(t, "OTP sent to +27821234567\nReference: ref-1\n", f.stdout.String())
	assert.Equal(t, testPending(), f.loadState().Pending())
	assert.Equal(t, 1, f.closed)
}

func TestRequestOTP_MissingPhone(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, f.run("request-otp"))
	assert.Contains(t, f.stderr.String(), "INVALID_INPUT")
	assert.Contains(t, f.stderr.String(), "--phone is required")
}

func TestInvalidFlagsDoNotBuildRuntime(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"request-otp without phone", []string{"request-otp"}, "--phone is required"},
		{"verify-otp bad code", []string{"verify-otp", "--phone", "0821234567", "--otp", "1"}, "--otp must be at least 4 characters"},
		{"login otp without phone", []string{"login", "--otp", "1234"}, "--phone is required"},
		{"search without query", []string{"search"}, "--query is required"},
		{"add-to-basket zero qty", []string{"add-to-basket", "--product-id", "p1", "--qty", "0"}, "--qty must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			assert.Equal(t, 1, f.run(tt.args...))
			assert.Contains(t, f.stderr.String(), tt.want)
			assert.Zero(t, f.built, "runtime built before flags were checked")
			assert.Zero(t, f.closed)
		})
	}
}

func TestVerifyOTP_CompletesPendingLogin(t *testing.T) {
	f := newFixture(t)
	f.saveState(domain.StoredState{}.WithPending(testPending()))
	f.auth.On("CompleteOTP", anyCtx, testPending(), "0821234567", "1234").Return(testResult(), nil)
	f.events.On("PublishSessionAuthenticated", anyCtx, testSession()).Return(nil)

	require.Equal(t, 0, f.run("verify-otp", "--phone", "0821234567", "--otp", "1234"))

	assert.Equal(t, "Saved auth state to /state/auth.json for +27821234567\n", f.stdout.String())
	state := f.loadState()
	assert.True(t, state.IsComplete())
	assert.Equal(t, "bff", state.BFFToken)
	assert.Equal(t, "ref-1", state.OTPReference)
}

func TestVerifyOTP_ReferenceOverridesSaved(t *testing.T) {
	f := newFixture(t)
	f.saveState(domain.StoredState{}.WithPending(testPending()))

	want := testPending()
	want.Reference = "ref-override"
	f.auth.On("CompleteOTP", anyCtx, want, "0821234567", "1234").Return(testResult(), nil)
	f.events.On("PublishSessionAuthenticated", anyCtx, testSession()).Return(nil)

	require.Equal(t, 0, f.run("verify-otp", "--phone", "0821234567", "--otp", "1234", "--reference", "ref-override"))
}

func TestVerifyOTP_NoPendingState(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, f.run("verify-otp", "--phone", "0821234567", "--otp", "1234"))
	assert.Contains(t, f.stderr.String(), "AUTH_FAILED: missing pending auth context")
}

func TestVerifyOTP_NoPendingStateWithReferenceRunsFullLogin(t *testing.T) {
	f := newFixture(t)
	f.auth.On("Login", anyCtx, "0821234567", "ref-9", "1234").Return(testResult(), nil)
	f.events.On("PublishSessionAuthenticated", anyCtx, testSession()).Return(nil)

	require.Equal(t, 0, f.run("verify-otp", "--phone", "0821234567", "--otp", "1234", "--reference", "ref-9"))
	assert.True(t, f.loadState().IsComplete())
}

func TestVerifyOTP_RejectedCodeKeepsPending(t *testing.T) {
	f := newFixture(t)
	f.saveState(domain.StoredState{}.WithPending(testPending()))
	f.auth.On("CompleteOTP", anyCtx, testPending(), "0821234567", "9999").
		Return(nil, apperrors.OTPRejected("otp was not accepted").AtStep(auth.StepVerifyOTP))

	assert.Equal(t, 1, f.run("verify-otp", "--phone", "0821234567", "--otp", "9999"))
	assert.Contains(t, f.stderr.String(), "OTP_REJECTED: otp was not accepted (step verify_otp)")
	assert.Equal(t, testPending(), f.loadState().Pending())
}

func TestVerifyOTP_InvalidCodeShape(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, f.run("verify-otp", "--phone", "0821234567", "--otp", "12ab"))
	assert.Contains(t, f.stderr.String(), "--otp must contain only digits")
}

func TestVerifyOTP_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.saveState(domain.StoredState{}.WithPending(testPending()))
	f.auth.On("CompleteOTP", anyCtx, testPending(), "0821234567", "1234").Return(testResult(), nil)
	f.events.On("PublishSessionAuthenticated", anyCtx, testSession()).Return(errors.New("broker down"))

	assert.Equal(t, 0, f.run("verify-otp", "--phone", "0821234567", "--otp", "1234"))
	assert.True(t, f.loadState().IsComplete())
}

func TestLogin_PhoneOnlyRequestsOTP(t *testing.T) {
	f := newFixture(t)
	f.auth.On("StartOTP", anyCtx, "0821234567").Return(testPending(), nil)

	require.Equal(t, 0, f.run("login", "--phone", "0821234567"))
	assert.Contains(t, f.stdout.String(), "OTP sent to +27821234567")
}

func TestLogin_Interactive(t *testing.T) {
	f := newFixture(t)
	f.prompt.answers = []string{"0821234567", "1234"}
	f.auth.On("StartOTP", anyCtx, "0821234567").Return(testPending(), nil)
	f.auth.On("CompleteOTP", anyCtx, testPending(), "+27821234567", "1234").Return(testResult(), nil)
	f.events.On("PublishSessionAuthenticated", anyCtx, testSession()).Return(nil)

	require.Equal(t, 0, f.run("login"))

	assert.Equal(t, []string{"Phone number (e.g. 0821234567): ", "Enter OTP: "}, f.prompt.labels)
	assert.Equal(t, "OTP sent to +27821234567\nSaved auth state to /state/auth.json for +27821234567\n", f.stdout.String())
	assert.True(t, f.loadState().IsComplete())
}

// --- commerce ---

func completeState() domain.StoredState {
	return domain.NewStoredState(testSession(), "bff", "ref-1")
}

func TestOrders_Compact(t *testing.T) {
	f := newFixture(t)
	f.saveState(completeState())
	f.auth.On("Hydrate", anyCtx, mock.AnythingOfType("domain.StoredState")).Return(completeState(), false, nil)
	f.orders.On("History", anyCtx, testSession()).Return(json.RawMessage(`{
		"inactiveOrderGroupSummaries": [
			{"id": "o1", "reference": "R1", "reducedStatus": "DELIVERED", "totals": {"totalPayable": 120.5}, "createdOn": 1700000000000},
			{"reference": "no-id"}
		]}`), nil)

	require.Equal(t, 0, f.run("orders", "--compact"))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(f.stdout.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0]["id"])
	assert.Equal(t, "DELIVERED", got[0]["status"])
}

func TestOrders_FullAndJSONOnly(t *testing.T) {
	f := newFixture(t)
	f.saveState(completeState())
	f.auth.On("Hydrate", anyCtx, mock.AnythingOfType("domain.StoredState")).Return(completeState(), false, nil)
	f.orders.On("History", anyCtx, testSession()).Return(json.RawMessage(`{"b":1,"a":2}`), nil)

	require.Equal(t, 0, f.run("orders"))
	assert.Equal(t, "Fetched orders successfully.\n{\n  \"b\": 1,\n  \"a\": 2\n}\n", f.stdout.String())

	require.Equal(t, 0, f.run("orders", "--json"))
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": 2\n}\n", f.stdout.String())
}

func TestOrders_NoSavedState(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, f.run("orders"))
	assert.Contains(t, f.stderr.String(), "AUTH_FAILED: no local auth found, run login first")
}

func TestOrders_HydrationChangesAreSaved(t *testing.T) {
	f := newFixture(t)
	partial := completeState()
	partial.StoreIDs = nil
	f.saveState(partial)

	f.auth.On("Hydrate", anyCtx, mock.AnythingOfType("domain.StoredState")).Return(completeState(), true, nil)
	f.orders.On("History", anyCtx, testSession()).Return(json.RawMessage(`{}`), nil)

	require.Equal(t, 0, f.run("orders", "--json"))
	assert.Equal(t, []string{"s1", "s2"}, f.loadState().StoreIDs)
}

func TestOrders_HydrationFailure(t *testing.T) {
	f := newFixture(t)
	f.saveState(domain.StoredState{PhoneE164: "+27821234567"})
	f.auth.On("Hydrate", anyCtx, mock.AnythingOfType("domain.StoredState")).
		Return(domain.StoredState{}, false, apperrors.Unauthorized("missing user access token, run login first"))

	assert.Equal(t, 1, f.run("orders"))
	assert.Equal(t, "AUTH_FAILED: missing user access token, run login first\n", f.stderr.String())
}

func TestSearch_Compact(t *testing.T) {
	f := newFixture(t)
	f.saveState(completeState())
	f.auth.On("Hydrate", anyCtx, mock.AnythingOfType("domain.StoredState")).Return(completeState(), false, nil)
	f.catalog.On("Search", anyCtx, testSession(), "milk", pagination.Params{Page: 2, PageSize: 5}).
		Return(json.RawMessage(`{"products":[{"id":"p1","name":"Milk","brandName":"Clover","price":{"now":21.99}}]}`), nil)

	require.Equal(t, 0, f.run("search", "--query", "milk", "--page", "2", "--size", "5", "--compact"))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(f.stdout.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Clover", got[0]["brand"])
	assert.Equal(t, 21.99, got[0]["price"])
}

func TestSearch_DefaultPaging(t *testing.T) {
	f := newFixture(t)
	f.saveState(completeState())
	f.auth.On("Hydrate", anyCtx, mock.AnythingOfType("domain.StoredState")).Return(completeState(), false, nil)
	f.catalog.On("Search", anyCtx, testSession(), "bread", pagination.DefaultParams()).
		Return(json.RawMessage(`{"products":[]}`), nil)

	require.Equal(t, 0, f.run("search", "--query", "bread"))
}

func TestSearch_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing query", []string{"search"}, "--query is required"},
		{"negative page", []string{"search", "--query", "milk", "--page", "-1"}, "--page must be greater than or equal to 0"},
		{"size too large", []string{"search", "--query", "milk", "--size", "500"}, "--size must be less than or equal to 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			assert.Equal(t, 1, f.run(tt.args...))
			assert.Contains(t, f.stderr.String(), tt.want)
		})
	}
}

func TestAddToBasket_PrintsResponse(t *testing.T) {
	f := newFixture(t)
	f.saveState(completeState())
	f.auth.On("Hydrate", anyCtx, mock.AnythingOfType("domain.StoredState")).Return(completeState(), false, nil)
	f.basket.On("AddToBasket", anyCtx, testSession(), basket.AddInput{ProductID: "p1", Quantity: 2, CartID: "cart-b"}).
		Return(&basket.Result{Response: json.RawMessage(`{"ok":true}`), TargetCartID: "cart-b"}, nil)

	require.Equal(t, 0, f.run("add-to-basket", "--product-id", "p1", "--qty", "2", "--cart-id", "cart-b"))
	assert.Equal(t, "{\n  \"ok\": true\n}\n", f.stdout.String())
	assert.Empty(t, f.stderr.String())
}

func TestAddToBasket_DefaultQuantityAndPromotionWarning(t *testing.T) {
	f := newFixture(t)
	f.saveState(completeState())
	f.auth.On("Hydrate", anyCtx, mock.AnythingOfType("domain.StoredState")).Return(completeState(), false, nil)
	f.basket.On("AddToBasket", anyCtx, testSession(), basket.AddInput{ProductID: "p1", Quantity: 1}).
		Return(&basket.Result{
			Response:          json.RawMessage(`{}`),
			PromotionFailures: []basket.PromotionFailure{{CartID: "cart-c", Err: errors.New("503")}},
		}, nil)

	require.Equal(t, 0, f.run("add-to-basket", "--product-id", "p1"))
	assert.Equal(t, "warning: promotions not refreshed for cart cart-c: 503\n", f.stderr.String())
}

func TestAddToBasket_InvalidInput(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, f.run("add-to-basket", "--product-id", "p1", "--qty", "0"))
	assert.Contains(t, f.stderr.String(), "INVALID_INPUT: --qty must be greater than 0")
}

func TestAddToBasket_NotFound(t *testing.T) {
	f := newFixture(t)
	f.saveState(completeState())
	f.auth.On("Hydrate", anyCtx, mock.AnythingOfType("domain.StoredState")).Return(completeState(), false, nil)
	f.basket.On("AddToBasket", anyCtx, testSession(), mock.AnythingOfType("basket.AddInput")).
		Return(nil, apperrors.NotFound("cart", "missing").AtStep("select_cart"))

	assert.Equal(t, 1, f.run("add-to-basket", "--product-id", "p1", "--cart-id", "missing"))
	assert.Contains(t, f.stderr.String(), "NOT_FOUND")
	assert.Contains(t, f.stderr.String(), "(step select_cart)")
}

// --- status ---

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func TestStatus_NoState(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, 0, f.run("status"))

	var got statusView
	require.NoError(t, json.Unmarshal(f.stdout.Bytes(), &got))
	assert.False(t, got.LoggedIn)
	assert.Equal(t, "/state/auth.json", got.Location)
}

func TestStatus_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	state := completeState()
	state.UserAccessToken = signedToken(t, f.now.Add(-time.Hour))
	f.saveState(state)

	require.Equal(t, 0, f.run("status"))

	var got statusView
	require.NoError(t, json.Unmarshal(f.stdout.Bytes(), &got))
	assert.True(t, got.LoggedIn)
	assert.True(t, got.Complete)
	assert.Equal(t, "********4567", got.Phone)
	assert.Equal(t, 2, got.StoreCount)
	require.NotNil(t, got.TokenExpiresAt)
	assert.True(t, got.TokenExpired)
}

func TestStatus_PendingOTP(t *testing.T) {
	f := newFixture(t)
	f.saveState(domain.StoredState{}.WithPending(testPending()))

	require.Equal(t, 0, f.run("status"))

	var got statusView
	require.NoError(t, json.Unmarshal(f.stdout.Bytes(), &got))
	assert.False(t, got.LoggedIn)
	assert.True(t, got.PendingOTP)
	assert.Contains(t, got.Missing, "userAccessToken")
	assert.Nil(t, got.TokenExpiresAt)
}

func TestStatus_WithoutCheckSkipsDependencies(t *testing.T) {
	f := newFixture(t)
	f.health = health.NewRegistry(time.Second)

	require.Equal(t, 0, f.run("status"))
	assert.NotContains(t, f.stdout.String(), "dependencies")
}

func TestStatus_CheckReportsDependencies(t *testing.T) {
	f := newFixture(t)
	registry := health.NewRegistry(time.Second)
	registry.Register("session_store", func(context.Context) error { return nil })
	registry.Register("kafka", func(context.Context) error { return errors.New("all brokers unreachable") })
	f.health = registry

	require.Equal(t, 0, f.run("status", "--check"))

	var got statusView
	require.NoError(t, json.Unmarshal(f.stdout.Bytes(), &got))
	require.NotNil(t, got.Dependencies)
	assert.Equal(t, health.StatusDown, got.Dependencies.Status)
	assert.Equal(t, health.StatusUp, got.Dependencies.Checks["session_store"].Status)
	assert.Equal(t, "all brokers unreachable", got.Dependencies.Checks["kafka"].Error)
}

func TestStatus_CheckWithoutRegistry(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, f.run("status", "--check"))
	assert.Contains(t, f.stderr.String(), "SERVICE_UNAVAILABLE")
}

// --- plumbing ---

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, f.run("checkout"))
	assert.Contains(t, f.stderr.String(), "ERROR: unknown command")
	assert.Equal(t, 0, f.closed)
}

func TestRuntimeFactoryError(t *testing.T) {
	root := NewRootCommand(func(context.Context) (*Runtime, error) {
		return nil, errors.New("unknown session backend")
	})
	var stderr bytes.Buffer
	root.SetErr(&stderr)
	root.SetOut(io.Discard)

	assert.Equal(t, 1, Execute(context.Background(), root, []string{"status"}))
	assert.Equal(t, "ERROR: unknown session backend\n", stderr.String())
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"app error", apperrors.InvalidInput("bad"), "INVALID_INPUT: bad"},
		{"wrapped app error", errors.Join(errors.New("load auth state"), apperrors.Unauthorized("x")), "AUTH_FAILED: load auth state\nAUTH_FAILED: x"},
		{"transport", errors.Join(apperrors.ErrTransport, errors.New("dial")), "TRANSPORT_ERROR: transport error\ndial"},
		{"deadline", context.DeadlineExceeded, "TIMEOUT: context deadline exceeded"},
		{"plain", errors.New("boom"), "ERROR: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatError(tt.err))
		})
	}
}
