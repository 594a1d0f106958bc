package domain

import (
	"encoding/json"
	"fmt"
)

// ServiceOptionSixtyMin is the one-hour delivery service option.
const ServiceOptionSixtyMin = "sixty-min-delivery"

// Cart is one of a customer's parallel carts, one per service option.
//
// A cart decoded with DecodeLineItems remembers the line items exactly as the
// platform sent them and marshals those bytes back unchanged. WithLineItems
// replaces them with the typed LineItems.
type Cart struct {
	ID                string
	ServiceOptionID   string
	DeliveryAddressID string
	LineItems         []LineItem

	rawLineItems json.RawMessage
}

// FindItemIndex returns the index of the line item for productID, or -1.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.LineItems {
		if c.LineItems[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// DecodeLineItems parses the platform's lineItems array into LineItems and
// keeps raw for pass-through.
func (c *Cart) DecodeLineItems(raw json.RawMessage) error {
	c.LineItems = nil
	c.rawLineItems = nil
	if len(raw) == 0 {
		return nil
	}

	var items []LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("decode line items of cart %s: %w", c.ID, err)
	}
	c.LineItems = items
	c.rawLineItems = append(json.RawMessage(nil), raw...)
	return nil
}

// WithLineItems returns a copy of the cart carrying items. The copy no longer
// passes the platform's original line items through.
func (c Cart) WithLineItems(items []LineItem) Cart {
	c.LineItems = items
	c.rawLineItems = nil
	return c
}

type cartJSON struct {
	ID              string `json:"id"`
	ServiceOptionID string `json:"serviceOptionId"`
	LineItems       any    `json:"lineItems"`
}

// MarshalJSON emits the original line items when the cart still has them,
// otherwise LineItems, always as an array.
func (c Cart) MarshalJSON() ([]byte, error) {
	out := cartJSON{ID: c.ID, ServiceOptionID: c.ServiceOptionID}
	switch {
	case c.rawLineItems != nil:
		out.LineItems = c.rawLineItems
	case c.LineItems == nil:
		out.LineItems = []LineItem{}
	default:
		out.LineItems = c.LineItems
	}
	return json.Marshal(out)
}

// LineItem is one product entry in a cart. The fields the client reasons about
// are typed; everything else the platform sends is kept in Extra and written
// back untouched. Optional typed fields are pointers so a field the server
// omitted stays omitted.
type LineItem struct {
	ProductID          string
	Quantity           *float64
	Price              *float64
	PriceFactor        *float64
	PreviousPrice      *float64
	StoreID            *string
	ServiceOptionID    *string
	IsStockAvailable   *bool
	RequiresOver18     *bool
	HasAlcohol         *bool
	IsSponsoredProduct *bool

	Extra map[string]json.RawMessage
}

type lineItemWire struct {
	ProductID          *string  `json:"productId,omitempty"`
	Quantity           *float64 `json:"quantity,omitempty"`
	Price              *float64 `json:"price,omitempty"`
	PriceFactor        *float64 `json:"priceFactor,omitempty"`
	PreviousPrice      *float64 `json:"previousPrice,omitempty"`
	StoreID            *string  `json:"storeId,omitempty"`
	ServiceOptionID    *string  `json:"serviceOptionId,omitempty"`
	IsStockAvailable   *bool    `json:"isStockAvailable,omitempty"`
	RequiresOver18     *bool    `json:"requiresOver18,omitempty"`
	HasAlcohol         *bool    `json:"hasAlcohol,omitempty"`
	IsSponsoredProduct *bool    `json:"isSponsoredProduct,omitempty"`
	Product            *struct {
		ID string `json:"id"`
	} `json:"product,omitempty"`
}

// UnmarshalJSON parses a platform line item. The nested product.id reference
// some endpoints send is folded into ProductID and the product object dropped.
// Carts that are not being changed keep their original bytes; see Cart.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode line item: %w", err)
	}
	var w lineItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode line item fields: %w", err)
	}

	*l = LineItem{
		Quantity:           w.Quantity,
		Price:              w.Price,
		PriceFactor:        w.PriceFactor,
		PreviousPrice:      w.PreviousPrice,
		StoreID:            w.StoreID,
		ServiceOptionID:    w.ServiceOptionID,
		IsStockAvailable:   w.IsStockAvailable,
		RequiresOver18:     w.RequiresOver18,
		HasAlcohol:         w.HasAlcohol,
		IsSponsoredProduct: w.IsSponsoredProduct,
	}
	switch {
	case w.ProductID != nil && *w.ProductID != "":
		l.ProductID = *w.ProductID
	case w.Product != nil:
		l.ProductID = w.Product.ID
	}

	// A typed field that decoded to nil was null or absent; keep nulls verbatim.
	typed := map[string]bool{
		"quantity":           w.Quantity != nil,
		"price":              w.Price != nil,
		"priceFactor":        w.PriceFactor != nil,
		"previousPrice":      w.PreviousPrice != nil,
		"storeId":            w.StoreID != nil,
		"serviceOptionId":    w.ServiceOptionID != nil,
		"isStockAvailable":   w.IsStockAvailable != nil,
		"requiresOver18":     w.RequiresOver18 != nil,
		"hasAlcohol":         w.HasAlcohol != nil,
		"isSponsoredProduct": w.IsSponsoredProduct != nil,
		"product":            true,
	}
	for key, decoded := range typed {
		if decoded {
			delete(raw, key)
		}
	}
	if l.ProductID != "" {
		delete(raw, "productId")
	}
	if len(raw) > 0 {
		l.Extra = raw
	}
	return nil
}

// MarshalJSON writes the typed fields over the preserved extra fields.
func (l LineItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Extra)+11)
	for k, v := range l.Extra {
		out[k] = v
	}

	if l.ProductID != "" {
		out["productId"] = l.ProductID
	}
	setIfPresent(out, "quantity", l.Quantity)
	setIfPresent(out, "price", l.Price)
	setIfPresent(out, "priceFactor", l.PriceFactor)
	setIfPresent(out, "previousPrice", l.PreviousPrice)
	setIfPresent(out, "storeId", l.StoreID)
	setIfPresent(out, "serviceOptionId", l.ServiceOptionID)
	setIfPresent(out, "isStockAvailable", l.IsStockAvailable)
	setIfPresent(out, "requiresOver18", l.RequiresOver18)
	setIfPresent(out, "hasAlcohol", l.HasAlcohol)
	setIfPresent(out, "isSponsoredProduct", l.IsSponsoredProduct)

	return json.Marshal(out)
}

func setIfPresent[T any](out map[string]any, key string, v *T) {
	if v != nil {
		out[key] = *v
	}
}

// Qty returns the line quantity, treating an absent quantity as zero.
func (l LineItem) Qty() float64 {
	if l.Quantity == nil {
		return 0
	}
	return *l.Quantity
}

// WithQuantity returns a copy of the line item carrying quantity q. Extra is
// shared with the receiver, which is safe because it is never mutated.
func (l LineItem) WithQuantity(q float64) LineItem {
	l.Quantity = &q
	return l
}
