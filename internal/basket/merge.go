package basket

import (
	"encoding/json"

	"github.com/utafrali/sixty60/internal/domain"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
)

// Defaults the mobile app sends for a line item added from search results.
var newLineItemDefaults = map[string]json.RawMessage{
	"id":                      json.RawMessage(`""`),
	"specialInstructions":     json.RawMessage(`""`),
	"replacementPreferenceId": json.RawMessage(`""`),
	"optionSelections":        json.RawMessage(`[]`),
	"selectedWeightRange":     json.RawMessage(`null`),
	"missionName":             json.RawMessage(`""`),
	"missionType":             json.RawMessage(`""`),
	"addToBasketType":         json.RawMessage(`"quick_add"`),
	"addToBasketJourney":      json.RawMessage(`"main_search_results"`),
	"ranged":                  json.RawMessage(`false`),
}

// selectTarget picks the cart to add to: the cart with id cartID when one is
// given, else the one-hour delivery cart, else the first cart.
func selectTarget(carts []domain.Cart, cartID string) (int, error) {
	idx := -1
	switch {
	case cartID != "":
		for i := range carts {
			if carts[i].ID == cartID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return -1, apperrors.NotFound("cart", cartID).AtStep(stepSelectCart)
		}
	default:
		for i := range carts {
			if carts[i].ServiceOptionID == domain.ServiceOptionSixtyMin {
				idx = i
				break
			}
		}
		if idx < 0 && len(carts) > 0 {
			idx = 0
		}
	}

	if idx < 0 || carts[idx].ID == "" || carts[idx].ServiceOptionID == "" {
		return -1, apperrors.NotFoundf("no cart to update").AtStep(stepSelectCart)
	}
	return idx, nil
}

// mergeLineItem returns cart's line items with qty more of productID. An
// existing line only has its quantity bumped; otherwise a new line built from
// product is appended. The cart itself is not modified.
func mergeLineItem(cart domain.Cart, product domain.Product, qty float64, defaultStoreID string) []domain.LineItem {
	items := make([]domain.LineItem, len(cart.LineItems), len(cart.LineItems)+1)
	copy(items, cart.LineItems)

	if i := cart.FindItemIndex(product.ID); i >= 0 {
		items[i] = items[i].WithQuantity(items[i].Qty() + qty)
		return items
	}
	return append(items, newLineItem(product, qty, cart.ServiceOptionID, defaultStoreID))
}

func newLineItem(p domain.Product, qty float64, cartServiceOption, defaultStoreID string) domain.LineItem {
	price := valueOr(p.PriceWithoutDecimal, 0)
	extra := make(map[string]json.RawMessage, len(newLineItemDefaults))
	for k, v := range newLineItemDefaults {
		extra[k] = v
	}

	return domain.LineItem{
		ProductID:          p.ID,
		Quantity:           &qty,
		Price:              &price,
		PriceFactor:        ptr(valueOr(p.PriceFactor, 100)),
		PreviousPrice:      ptr(valueOr(p.OldPrice, price)),
		StoreID:            ptr(valueOr(p.StoreID, defaultStoreID)),
		ServiceOptionID:    ptr(valueOr(p.ServiceOptionID, cartServiceOption)),
		IsStockAvailable:   ptr(valueOr(p.IsStockAvailable, true)),
		RequiresOver18:     ptr(valueOr(p.RequiresOver18, false)),
		IsSponsoredProduct: ptr(valueOr(p.IsSponsored, false)),
		HasAlcohol:         ptr(valueOr(p.HasAlcohol, false)),
		Extra:              extra,
	}
}

// buildPayload returns every cart the update endpoint must receive: all carts
// with an id and service option, the target carrying merged. Every other cart
// goes out with its line items as fetched.
func buildPayload(carts []domain.Cart, target int, merged []domain.LineItem) []domain.Cart {
	payload := make([]domain.Cart, 0, len(carts))
	for i, c := range carts {
		if c.ID == "" || c.ServiceOptionID == "" {
			continue
		}
		if i == target {
			c = c.WithLineItems(merged)
		}
		payload = append(payload, c)
	}
	return payload
}

// deliveryAddress returns the target cart's address, else the first address
// found on any cart, else "".
func deliveryAddress(carts []domain.Cart, target int) string {
	if id := carts[target].DeliveryAddressID; id != "" {
		return id
	}
	for _, c := range carts {
		if c.DeliveryAddressID != "" {
			return c.DeliveryAddressID
		}
	}
	return ""
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

func ptr[T any](v T) *T {
	return &v
}
