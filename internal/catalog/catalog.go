package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/internal/platform"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/pagination"
	"github.com/utafrali/sixty60/pkg/telemetry"
)

const listPagePath = "/api/v3/products/product-list-page"

// Caller is the slice of the platform client the catalog needs.
type Caller interface {
	Call(ctx context.Context, req platform.Request, out any) error
	Headers(id platform.Identity, opts ...platform.HeaderOption) http.Header
	Now() time.Time
}

// Service queries the product catalog.
type Service struct {
	client Caller
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates a new catalog service.
func NewService(client Caller, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
		tracer: telemetry.Tracer("sixty60/catalog"),
	}
}

type listSource struct {
	Search     string   `json:"search,omitempty"`
	ProductIDs []string `json:"productIds,omitempty"`
}

type filterOptions struct {
	DealsOnly         bool     `json:"dealsOnly"`
	BrandOptions      []string `json:"brandOptions"`
	DepartmentOptions []string `json:"departmentOptions"`
	FacetOptions      []string `json:"facetOptions"`
	ServiceOptions    []string `json:"serviceOptions"`
	FilterIDs         []string `json:"filterIds"`
}

type listFilter struct {
	ProductListSource     listSource        `json:"productListSource"`
	PaginationOptions     pagination.Params `json:"paginationOptions"`
	FilterOptions         filterOptions     `json:"filterOptions"`
	ShowNotRangedProducts bool              `json:"showNotRangedProducts"`
}

type userContext struct {
	StoreContexts []domain.StoreContext `json:"storeContexts"`
	UserID        string                `json:"userId"`
}

type listPageRequest struct {
	Filter      listFilter  `json:"filter"`
	UserContext userContext `json:"userContext"`
}

func newListPageRequest(source listSource, page pagination.Params, stores []domain.StoreContext, userID string) listPageRequest {
	if stores == nil {
		stores = []domain.StoreContext{}
	}
	return listPageRequest{
		Filter: listFilter{
			ProductListSource: source,
			PaginationOptions: page,
			FilterOptions: filterOptions{
				BrandOptions:      []string{},
				DepartmentOptions: []string{},
				FacetOptions:      []string{},
				ServiceOptions:    []string{},
				FilterIDs:         []string{},
			},
		},
		UserContext: userContext{StoreContexts: stores, UserID: userID},
	}
}

func (s *Service) listPage(ctx context.Context, endpoint string, session domain.Session, storeIDs []string, body listPageRequest, out any) error {
	return s.client.Call(ctx, platform.Request{
		Host:     platform.HostCatalog,
		Method:   http.MethodPost,
		Path:     listPagePath,
		Endpoint: endpoint,
		Query: url.Values{
			"isCarousel":                  []string{"true"},
			"includePromotions":           []string{"true"},
			"promotionChannel":            []string{"sixty60"},
			"isXtraSavingsMember":         []string{"true"},
			"particularMemberBonusBuyIds": []string{""},
			"t":                           []string{strconv.FormatInt(s.client.Now().UnixMilli(), 10)},
		},
		Header: s.client.Headers(platform.Identity{
			Token:      session.AccessToken,
			Phone:      session.Phone,
			StoreIDs:   storeIDs,
			UserID:     session.UserID,
			CustomerID: session.CustomerID,
			Email:      session.Email,
		}, platform.WithStoreIDsCSV(storeIDs)),
		Body: body,
	}, out)
}

// Search runs a free-text product search against the session's stores and
// returns the platform response unchanged.
func (s *Service) Search(ctx context.Context, session domain.Session, query string, page pagination.Params) (_ json.RawMessage, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.InvalidInput("search query must not be empty")
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "catalog.Search", trace.WithAttributes(
		attribute.Int("page", page.Page),
		attribute.Int("page_size", page.PageSize),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	stores := make([]domain.StoreContext, 0, len(session.StoreIDs))
	for _, id := range session.StoreIDs {
		stores = append(stores, domain.NewSixtyMinStoreContext(id))
	}

	var raw json.RawMessage
	body := newListPageRequest(listSource{Search: query}, page, stores, session.UserID)
	if err := s.listPage(ctx, "products.search", session, session.StoreIDs, body, &raw); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "search completed",
		slog.String("query", query),
		slog.Int("page", page.Page),
	)
	return raw, nil
}

// LookupProduct fetches productID as the given stores see it. A product the
// stores do not range is a NotFound error.
func (s *Service) LookupProduct(ctx context.Context, session domain.Session, stores []domain.StoreContext, productID string) (_ domain.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.LookupProduct", trace.WithAttributes(
		attribute.String("product_id", productID),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	var resp struct {
		Products []domain.Product `json:"products"`
	}
	body := newListPageRequest(listSource{ProductIDs: []string{productID}}, pagination.DefaultParams(), stores, session.UserID)
	if err := s.listPage(ctx, "products.lookup", session, domain.StoreIDs(stores), body, &resp); err != nil {
		return domain.Product{}, err
	}

	for _, p := range resp.Products {
		if p.ID == productID {
			return p, nil
		}
	}
	return domain.Product{}, apperrors.NotFoundf("product %s not found in current store context", productID)
}
