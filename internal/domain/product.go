package domain

// Product is a catalog lookup result, restricted to the fields a new line
// item is built from. Absent fields stay nil and get defaults at merge time.
type Product struct {
	ID                  string   `json:"id"`
	StoreID             *string  `json:"storeId,omitempty"`
	PriceWithoutDecimal *float64 `json:"priceWithoutDecimal,omitempty"`
	OldPrice            *float64 `json:"oldPrice,omitempty"`
	PriceFactor         *float64 `json:"priceFactor,omitempty"`
	ServiceOptionID     *string  `json:"serviceOptionId,omitempty"`
	IsStockAvailable    *bool    `json:"isStockAvailable,omitempty"`
	RequiresOver18      *bool    `json:"requiresOver18,omitempty"`
	IsSponsored         *bool    `json:"isSponsored,omitempty"`
	HasAlcohol          *bool    `json:"hasAlcohol,omitempty"`
}
