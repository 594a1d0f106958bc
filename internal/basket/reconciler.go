package basket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/internal/event"
	"github.com/utafrali/sixty60/internal/platform"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/telemetry"
)

// Reconciliation step names, carried by the errors each step returns.
const (
	stepResolveStores     = "resolve_stores"
	stepFetchCarts        = "fetch_carts"
	stepSelectCart        = "select_cart"
	stepLookupProduct     = "lookup_product"
	stepUpdateCarts       = "update_carts"
	stepRefreshPromotions = "refresh_promotions"
)

// Caller is the slice of the platform client the reconciler needs.
type Caller interface {
	Call(ctx context.Context, req platform.Request, out any) error
	Headers(id platform.Identity, opts ...platform.HeaderOption) http.Header
}

// StoreResolver resolves the store contexts serving a session.
type StoreResolver interface {
	Resolve(ctx context.Context, session domain.Session) ([]domain.StoreContext, error)
}

// ProductLookup fetches one product as a set of stores sees it.
type ProductLookup interface {
	LookupProduct(ctx context.Context, session domain.Session, stores []domain.StoreContext, productID string) (domain.Product, error)
}

// EventPublisher publishes basket events.
type EventPublisher interface {
	PublishBasketUpdated(ctx context.Context, data event.BasketUpdatedData) error
}

// AddInput holds the parameters for adding a product to the basket.
type AddInput struct {
	ProductID string
	Quantity  int
	CartID    string // optional; overrides target cart selection
}

// PromotionFailure records a cart whose promotions could not be refreshed.
type PromotionFailure struct {
	CartID string
	Err    error
}

// Result is the outcome of a committed basket update.
type Result struct {
	// Response is the cart update response, unchanged.
	Response          json.RawMessage
	TargetCartID      string
	Carts             []domain.Cart
	PromotionFailures []PromotionFailure
}

// Reconciler adds products to a customer's parallel carts and keeps every
// cart consistent with the change.
type Reconciler struct {
	client   Caller
	stores   StoreResolver
	products ProductLookup
	events   EventPublisher
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewReconciler creates a new reconciler. events may be nil.
func NewReconciler(client Caller, stores StoreResolver, products ProductLookup, events EventPublisher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		client:   client,
		stores:   stores,
		products: products,
		events:   events,
		logger:   logger,
		tracer:   telemetry.Tracer("sixty60/basket"),
	}
}

// AddToBasket adds in.Quantity units of in.ProductID to the target cart and
// submits every cart in one update, then refreshes promotions cart by cart.
// Promotion failures do not undo the update; they are reported on the result.
func (r *Reconciler) AddToBasket(ctx context.Context, session domain.Session, in AddInput) (_ *Result, err error) {
	if in.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if in.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be a positive integer")
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "basket.AddToBasket", trace.WithAttributes(
		attribute.String("product_id", in.ProductID),
		attribute.Int("quantity", in.Quantity),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	storeContexts, err := r.stores.Resolve(ctx, session)
	if err != nil {
		return nil, stepError(stepResolveStores, err)
	}
	storeIDs := domain.StoreIDs(storeContexts)

	carts, err := r.fetchCarts(ctx, session, storeContexts, storeIDs)
	if err != nil {
		return nil, err
	}

	target, err := selectTarget(carts, in.CartID)
	if err != nil {
		return nil, err
	}
	targetCart := carts[target]
	span.SetAttributes(attribute.String("cart_id", targetCart.ID))

	product, err := r.lookupProduct(ctx, session, storeContexts, in.ProductID)
	if err != nil {
		return nil, err
	}

	defaultStoreID := ""
	if len(storeIDs) > 0 {
		defaultStoreID = storeIDs[0]
	}
	merged := mergeLineItem(targetCart, product, float64(in.Quantity), defaultStoreID)
	payload := buildPayload(carts, target, merged)

	response, err := r.updateCarts(ctx, session, storeContexts, storeIDs, updateRequest{
		Carts:             payload,
		DeliveryAddressID: deliveryAddress(carts, target),
		StoreContexts:     storeContexts,
		TargetCart:        targetCart.ID,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Response:     response,
		TargetCartID: targetCart.ID,
		Carts:        payload,
	}
	r.logger.InfoContext(ctx, "basket updated",
		slog.String("cart_id", targetCart.ID),
		slog.String("product_id", in.ProductID),
		slog.Int("quantity", in.Quantity),
		slog.Int("carts", len(payload)),
	)

	for _, c := range payload {
		if err := r.refreshPromotions(ctx, session, storeContexts, storeIDs, c.ID); err != nil {
			r.logger.WarnContext(ctx, "promotions refresh failed",
				slog.String("cart_id", c.ID),
				slog.String("error", err.Error()),
			)
			result.PromotionFailures = append(result.PromotionFailures, PromotionFailure{CartID: c.ID, Err: err})
		}
	}

	r.publishUpdated(ctx, session, in, result)
	return result, nil
}

type cartsRequest struct {
	StoreContexts               []domain.StoreContext `json:"storeContexts"`
	IncludeV2ReplacementOptions bool                  `json:"includeV2ReplacementOptions"`
}

type cartWire struct {
	ID              string `json:"id"`
	ServiceOptionID string `json:"serviceOptionId"`
	DeliveryAddress *struct {
		Identifier string `json:"identifier"`
	} `json:"deliveryAddress"`
	LineItems json.RawMessage `json:"lineItems"`
}

type cartsResponse struct {
	Carts []struct {
		Item *cartWire `json:"item"`
	} `json:"carts"`
}

func (r *Reconciler) fetchCarts(ctx context.Context, session domain.Session, stores []domain.StoreContext, storeIDs []string) ([]domain.Cart, error) {
	var resp cartsResponse
	err := r.client.Call(ctx, platform.Request{
		Host:     platform.HostOrders,
		Method:   http.MethodPost,
		Path:     "/api/v2/carts/user",
		Endpoint: "carts.user",
		Query:    url.Values{"useProductMinInfoAnnotation": []string{"true"}},
		Header:   r.client.Headers(identity(session, storeIDs), platform.WithFormContentType()),
		Body:     cartsRequest{StoreContexts: stores, IncludeV2ReplacementOptions: true},
	}, &resp)
	if err != nil {
		return nil, stepError(stepFetchCarts, err)
	}

	carts := make([]domain.Cart, 0, len(resp.Carts))
	for _, entry := range resp.Carts {
		item := entry.Item
		if item == nil || item.ID == "" {
			continue
		}
		c := domain.Cart{
			ID:              item.ID,
			ServiceOptionID: item.ServiceOptionID,
		}
		if err := c.DecodeLineItems(item.LineItems); err != nil {
			return nil, stepError(stepFetchCarts, err)
		}
		if item.DeliveryAddress != nil {
			c.DeliveryAddressID = item.DeliveryAddress.Identifier
		}
		carts = append(carts, c)
	}

	r.logger.DebugContext(ctx, "carts fetched", slog.Int("count", len(carts)))
	return carts, nil
}

func (r *Reconciler) lookupProduct(ctx context.Context, session domain.Session, stores []domain.StoreContext, productID string) (domain.Product, error) {
	product, err := r.products.LookupProduct(ctx, session, stores, productID)
	if err != nil {
		return domain.Product{}, stepError(stepLookupProduct, err)
	}
	return product, nil
}

type updateRequest struct {
	Carts             []domain.Cart         `json:"carts"`
	DeliveryAddressID string                `json:"deliveryAddressId"`
	StoreContexts     []domain.StoreContext `json:"storeContexts"`
	TargetCart        string                `json:"targetCart"`
}

func (r *Reconciler) updateCarts(ctx context.Context, session domain.Session, stores []domain.StoreContext, storeIDs []string, body updateRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	err := r.client.Call(ctx, platform.Request{
		Host:     platform.HostOrders,
		Method:   http.MethodPost,
		Path:     "/api/v3/carts/update",
		Endpoint: "carts.update",
		Query:    url.Values{"useProductMinInfoAnnotation": []string{"true"}},
		Header: r.client.Headers(identity(session, storeIDs),
			platform.WithStoreIDsCSV(storeIDs),
			platform.WithFormContentType(),
		),
		Body: body,
	}, &raw)
	if err != nil {
		return nil, stepError(stepUpdateCarts, err)
	}
	return raw, nil
}

type promotionsRequest struct {
	StoreContexts []domain.StoreContext `json:"storeContexts"`
}

func (r *Reconciler) refreshPromotions(ctx context.Context, session domain.Session, stores []domain.StoreContext, storeIDs []string, cartID string) (err error) {
	ctx, span := r.tracer.Start(ctx, "basket.RefreshPromotions", trace.WithAttributes(
		attribute.String("cart_id", cartID),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	err = r.client.Call(ctx, platform.Request{
		Host:     platform.HostOrders,
		Method:   http.MethodPost,
		Path:     "/api/v1/carts/" + url.PathEscape(cartID) + "/update-promotions",
		Endpoint: "carts.update-promotions",
		Query: url.Values{
			"include_v2_replacement_preferences": []string{"true"},
			"useProductMinInfoAnnotation":        []string{"true"},
		},
		Header: r.client.Headers(identity(session, storeIDs), platform.WithFormContentType()),
		Body:   promotionsRequest{StoreContexts: stores},
	}, nil)
	if err != nil {
		return stepError(stepRefreshPromotions, err)
	}
	return nil
}

func (r *Reconciler) publishUpdated(ctx context.Context, session domain.Session, in AddInput, result *Result) {
	if r.events == nil {
		return
	}
	cartIDs := make([]string, 0, len(result.Carts))
	for _, c := range result.Carts {
		cartIDs = append(cartIDs, c.ID)
	}
	var failed []string
	for _, f := range result.PromotionFailures {
		failed = append(failed, f.CartID)
	}

	err := r.events.PublishBasketUpdated(ctx, event.BasketUpdatedData{
		CustomerID:        session.CustomerID,
		TargetCartID:      result.TargetCartID,
		ProductID:         in.ProductID,
		Quantity:          float64(in.Quantity),
		CartIDs:           cartIDs,
		PromotionFailures: failed,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "failed to publish basket.updated event",
			slog.String("cart_id", result.TargetCartID),
			slog.String("error", err.Error()),
		)
	}
}

func identity(session domain.Session, storeIDs []string) platform.Identity {
	return platform.Identity{
		Token:      session.AccessToken,
		Phone:      session.Phone,
		StoreIDs:   storeIDs,
		UserID:     session.UserID,
		CustomerID: session.CustomerID,
		Email:      session.Email,
	}
}

// stepError tags err with the reconciliation step that produced it.
func stepError(step string, err error) error {
	return apperrors.AtStep(err, step)
}
