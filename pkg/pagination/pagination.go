package pagination

// MaxPageSize is the largest page the product listing accepts from this client.
const MaxPageSize = 100

// Params are the zero-based paging options sent in a product-list request.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// DefaultParams returns the first page of twenty results.
func DefaultParams() Params {
	return Params{
		Page:     0,
		PageSize: 20,
	}
}

// New builds paging params, falling back to the defaults for values out of range.
func New(page, pageSize int) Params {
	p := DefaultParams()

	if page > 0 {
		p.Page = page
	}
	if pageSize > 0 && pageSize <= MaxPageSize {
		p.PageSize = pageSize
	}
	return p
}

// Offset returns the index of the first result on the page.
func (p Params) Offset() int {
	return p.Page * p.PageSize
}
