package domain

import "strings"

// Item is an owned product recorded after a scan. Its JSON form is the
// record stored under the "fridgeItems" key.
type Item struct {
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
}

// Label is the line shown for a freshly scanned item.
func (i Item) Label() string {
	return i.Name + " — " + i.Barcode
}

type ShoppingEntry struct {
	Name string `json:"name"`
}

// ShoppingView is a shopping entry as rendered; Owned is computed against the
// owned items and never persisted.
type ShoppingView struct {
	Name  string `json:"name"`
	Owned bool   `json:"owned"`
}

// SameName reports whether two item names are equal once lower-cased.
func SameName(a, b string) bool {
	return strings.ToLower(a) == strings.ToLower(b)
}
