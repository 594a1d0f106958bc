package domain

import (
	"encoding/json"
	"fmt"
)

// StoreContext is a store assignment returned by store resolution. The
// platform's full object is kept and sent back byte for byte; only the store
// id is read.
type StoreContext struct {
	StoreID string
	raw     json.RawMessage
}

func (s *StoreContext) UnmarshalJSON(data []byte) error {
	var fields struct {
		StoreID string `json:"storeId"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode store context: %w", err)
	}
	s.StoreID = fields.StoreID
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (s StoreContext) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	return json.Marshal(struct {
		StoreID string `json:"storeId"`
	}{s.StoreID})
}

// NewSixtyMinStoreContext builds the store context the product search sends
// for a stored store id: one-hour delivery with capacity.
func NewSixtyMinStoreContext(storeID string) StoreContext {
	raw, _ := json.Marshal(struct {
		StoreID          string   `json:"storeId"`
		ServiceOptionIDs []string `json:"serviceOptionIds"`
		BrandPriority    int      `json:"brandPriority"`
		HasCapacity      []string `json:"hasCapacity"`
	}{
		StoreID:          storeID,
		ServiceOptionIDs: []string{ServiceOptionSixtyMin},
		BrandPriority:    1,
		HasCapacity:      []string{ServiceOptionSixtyMin},
	})
	return StoreContext{StoreID: storeID, raw: raw}
}

// StoreIDs projects the store ids out of contexts, in order.
func StoreIDs(contexts []StoreContext) []string {
	ids := make([]string, 0, len(contexts))
	for _, c := range contexts {
		ids = append(ids, c.StoreID)
	}
	return ids
}
