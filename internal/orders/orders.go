package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/internal/platform"
	"github.com/utafrali/sixty60/pkg/telemetry"
)

// Caller is the slice of the platform client the orders service needs.
type Caller interface {
	Call(ctx context.Context, req platform.Request, out any) error
	Headers(id platform.Identity, opts ...platform.HeaderOption) http.Header
}

// Service reads the customer's order history.
type Service struct {
	client Caller
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates a new orders service.
func NewService(client Caller, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
		tracer: telemetry.Tracer("sixty60/orders"),
	}
}

// History returns the order history response unchanged.
func (s *Service) History(ctx context.Context, session domain.Session) (_ json.RawMessage, err error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "orders.History")
	defer func() { telemetry.EndSpan(span, err) }()

	var raw json.RawMessage
	err = s.client.Call(ctx, platform.Request{
		Host:     platform.HostOrders,
		Method:   http.MethodGet,
		Path:     "/api/v2/orders/history",
		Endpoint: "orders.history",
		Header: s.client.Headers(platform.Identity{
			Token:      session.AccessToken,
			Phone:      session.Phone,
			StoreIDs:   session.StoreIDs,
			UserID:     session.UserID,
			CustomerID: session.CustomerID,
			Email:      session.Email,
		}),
	}, &raw)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "order history fetched", slog.Int("bytes", len(raw)))
	return raw, nil
}

// CompactOrder is the short form of a past order.
type CompactOrder struct {
	ID           string  `json:"id"`
	Reference    string  `json:"reference"`
	Status       string  `json:"status"`
	TotalPayable float64 `json:"totalPayable"`
	CreatedOn    float64 `json:"createdOn"`
}

type orderSummary struct {
	ID             flexString `json:"id"`
	Reference      flexString `json:"reference"`
	ReducedStatus  flexString `json:"reducedStatus"`
	CustomerStatus flexString `json:"customerStatus"`
	Totals         struct {
		TotalPayable float64 `json:"totalPayable"`
	} `json:"totals"`
	CreatedOn float64 `json:"createdOn"`
}

// Compact projects a history response onto its completed order groups.
// Status is reducedStatus, else customerStatus, else "unknown". Orders
// without an id are dropped.
func Compact(raw json.RawMessage) ([]CompactOrder, error) {
	var resp struct {
		Inactive []json.RawMessage `json:"inactiveOrderGroupSummaries"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode order history: %w", err)
	}

	out := make([]CompactOrder, 0, len(resp.Inactive))
	for _, item := range resp.Inactive {
		var o orderSummary
		if err := json.Unmarshal(item, &o); err != nil {
			continue
		}
		if o.ID == "" {
			continue
		}

		status := string(o.ReducedStatus)
		if status == "" {
			status = string(o.CustomerStatus)
		}
		if status == "" {
			status = "unknown"
		}
		out = append(out, CompactOrder{
			ID:           string(o.ID),
			Reference:    string(o.Reference),
			Status:       status,
			TotalPayable: o.Totals.TotalPayable,
			CreatedOn:    o.CreatedOn,
		})
	}
	return out, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}
