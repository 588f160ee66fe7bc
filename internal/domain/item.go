package domain

// Item is a purchasable catalog entry. Items are loaded once at startup and
// never mutated afterwards.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// PriceMinor is the unit price in minor currency units (cents).
	PriceMinor int64  `json:"price"`
	ImageURL   string `json:"imageUrl"`
	SKU        string `json:"sku"`
}
