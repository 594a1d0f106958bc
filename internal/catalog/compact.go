package catalog

import (
	"encoding/json"
	"fmt"
)

// CompactProduct is the short form of a search hit.
type CompactProduct struct {
	ID    string   `json:"id,omitempty"`
	Name  string   `json:"name,omitempty"`
	Brand string   `json:"brand,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

type searchHit struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	BrandName    string          `json:"brandName"`
	CurrentPrice *float64        `json:"currentPrice"`
	Price        json.RawMessage `json:"price"`
}

// priceNow reads price.now. Any other shape of price yields nil.
func (h searchHit) priceNow() *float64 {
	var price struct {
		Now *float64 `json:"now"`
	}
	if len(h.Price) == 0 || json.Unmarshal(h.Price, &price) != nil {
		return nil
	}
	return price.Now
}

// Compact projects a search response onto id, name, brand and price. The
// price is currentPrice, falling back to price.now.
func Compact(raw json.RawMessage) ([]CompactProduct, error) {
	var resp struct {
		Products []searchHit `json:"products"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]CompactProduct, 0, len(resp.Products))
	for _, p := range resp.Products {
		c := CompactProduct{ID: p.ID, Name: p.Name, Brand: p.BrandName, Price: p.CurrentPrice}
		if c.Price == nil {
			c.Price = p.priceNow()
		}
		out = append(out, c)
	}
	return out, nil
}
