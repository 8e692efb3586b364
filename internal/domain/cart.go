package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an identifier sent by an upstream either as a JSON string or as a
// JSON number. Numbers keep their literal text, so 7 and "7" are equal.
type ID string

// UnmarshalJSON accepts a string, a number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %s", data)
	}
	*id = ID(n.String())
	return nil
}

// LineItem is one product entry in the cart together with its quantity.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity"`
}

// LineTotal returns price multiplied by quantity.
func (i LineItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Product is a catalog record as returned by the catalog listing endpoint.
// Line items copy their display fields from it.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Category    string  `json:"category,omitempty"`
}

// UnmarshalJSON decodes a product whose id may be a string or a number.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	aux := struct {
		*plain
		ID ID `json:"id"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.ID = string(aux.ID)
	return nil
}

// Snapshot is a read-only copy of the cart contents with its derived totals.
type Snapshot struct {
	Items     []LineItem `json:"items"`
	Subtotal  float64    `json:"subtotal"`
	ItemCount int        `json:"item_count"`
}

// NewSnapshot copies items and computes subtotal and item count.
func NewSnapshot(items []LineItem) Snapshot {
	cp := make([]LineItem, len(items))
	copy(cp, items)

	snap := Snapshot{Items: cp}
	for _, item := range cp {
		snap.Subtotal += item.LineTotal()
		snap.ItemCount += item.Quantity
	}
	return snap
}

// IsEmpty reports whether the snapshot has no line items.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Find returns the line item with the given id.
func (s Snapshot) Find(id string) (LineItem, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return LineItem{}, false
}

// FindItemIndex returns the index of the line item with the given id, or -1.
func FindItemIndex(items []LineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
