package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/internal/platform/platformtest"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/pagination"
)

var testSession = domain.Session{
	Phone:       "+27821234567",
	CustomerID:  "cust-1",
	UserID:      "user-1",
	Email:       "shopper@example.com",
	AccessToken: "access",
	StoreIDs:    []string{"s1", "s2"},
}

func newService(t *testing.T) (*Service, *platformtest.Server) {
	t.Helper()
	srv, client := platformtest.New(t)
	return NewService(client, slog.New(slog.NewTextHandler(io.Discard, nil))), srv
}

func TestSearch_SendsListPageRequest(t *testing.T) {
	svc, srv := newService(t)
	srv.Router.Post("/catalog"+listPagePath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		assert.Equal(t, "true", q.Get("isCarousel"))
		assert.Equal(t, "sixty60", q.Get("promotionChannel"))
		assert.True(t, q.Has("particularMemberBonusBuyIds"))
		assert.NotEmpty(t, q.Get("t"))

		assert.Equal(t, "s1,s2", req.Header.Get("storeids"))
		assert.Equal(t, "s1,s2", req.Header.Get("istio-storeIds"))
		assert.Equal(t, "s1,s2", req.Header.Get("aws-cf-cd-storeid"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		filter := body["filter"].(map[string]any)
		assert.Equal(t, map[string]any{"search": "milk"}, filter["productListSource"])
		assert.Equal(t, map[string]any{"page": float64(2), "pageSize": float64(10)}, filter["paginationOptions"])
		assert.Equal(t, []any{}, filter["filterOptions"].(map[string]any)["brandOptions"])

		userCtx := body["userContext"].(map[string]any)
		assert.Equal(t, "user-1", userCtx["userId"])
		stores := userCtx["storeContexts"].([]any)
		require.Len(t, stores, 2)
		assert.Equal(t, map[string]any{
			"storeId":          "s1",
			"serviceOptionIds": []any{"sixty-min-delivery"},
			"brandPriority":    float64(1),
			"hasCapacity":      []any{"sixty-min-delivery"},
		}, stores[0])

		_, _ = w.Write([]byte(`{"products":[{"id":"p1"}]}`))
	})

	raw, err := svc.Search(context.Background(), testSession, " milk ", pagination.New(2, 10))

	require.NoError(t, err)
	assert.JSONEq(t, `{"products":[{"id":"p1"}]}`, string(raw))
}

func TestSearch_Validation(t *testing.T) {
	svc, srv := newService(t)

	_, err := svc.Search(context.Background(), testSession, "  ", pagination.DefaultParams())
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	incomplete := testSession
	incomplete.StoreIDs = nil
	_, err = svc.Search(context.Background(), incomplete, "milk", pagination.DefaultParams())
	assert.True(t, errors.Is(err, apperrors.ErrStoreResolution))

	assert.Empty(t, srv.Calls())
}

func TestLookupProduct(t *testing.T) {
	svc, srv := newService(t)
	srv.Router.Post("/catalog"+listPagePath, func(w http.ResponseWriter, req *http.Request) {
		var body listPageRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, []string{"p1"}, body.Filter.ProductListSource.ProductIDs)
		assert.Equal(t, pagination.DefaultParams(), body.Filter.PaginationOptions)
		assert.Equal(t, "resolved", req.Header.Get("storeids"))

		_, _ = w.Write([]byte(`{"products":[{"id":"other"},{"id":"p1","priceWithoutDecimal":2999,"hasAlcohol":true}]}`))
	})

	var store domain.StoreContext
	require.NoError(t, json.Unmarshal([]byte(`{"storeId":"resolved","brandPriority":2}`), &store))

	p, err := svc.LookupProduct(context.Background(), testSession, []domain.StoreContext{store}, "p1")

	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	require.NotNil(t, p.PriceWithoutDecimal)
	assert.Equal(t, 2999.0, *p.PriceWithoutDecimal)
	require.NotNil(t, p.HasAlcohol)
	assert.True(t, *p.HasAlcohol)
	assert.Nil(t, p.OldPrice)
}

func TestLookupProduct_NotRanged(t *testing.T) {
	svc, srv := newService(t)
	srv.Router.Post("/catalog"+listPagePath, platformtest.JSON(`{"products":[]}`))

	_, err := svc.LookupProduct(context.Background(), testSession, nil, "p1")

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCompact(t *testing.T) {
	raw := json.RawMessage(`{"products":[
		{"id":"p1","name":"Milk 2L","brandName":"Clover","currentPrice":32.99,"price":{"now":35}},
		{"id":"p2","name":"Bread","brandName":"Albany","price":{"now":18.5}},
		{"id":"p3","name":"Eggs","price":12}
	]}`)

	got, err := Compact(raw)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Clover", got[0].Brand)
	assert.Equal(t, 32.99, *got[0].Price)
	assert.Equal(t, 18.5, *got[1].Price)
	assert.Nil(t, got[2].Price)
}

func TestCompact_NoProducts(t *testing.T) {
	got, err := Compact(json.RawMessage(`{}`))

	require.NoError(t, err)
	assert.Empty(t, got)
}
