// Package catalog holds the static, read-only set of purchasable items. The
// demo set is compiled in; nothing mutates the catalog after startup.
package catalog

import "github.com/finci-square/cash-ap-exemplar/internal/domain"

// demoItems mirrors the storefront's demo inventory. Prices are minor units.
var demoItems = []domain.Item{
	{
		ID:          "item-001",
		Name:        "Canvas Weekender Bag",
		Description: "Water-resistant canvas duffel with leather trim and a detachable shoulder strap.",
		PriceMinor:  12500,
		ImageURL:    "/images/canvas-weekender.jpg",
		SKU:         "BAG-CW-001",
	},
	{
		ID:          "item-002",
		Name:        "Trail Runner Sneakers",
		Description: "Lightweight trail shoes with a grippy outsole and recycled mesh upper.",
		PriceMinor:  8900,
		ImageURL:    "/images/trail-runner.jpg",
		SKU:         "SHOE-TR-002",
	},
	{
		ID:          "item-003",
		Name:        "Merino Crew Sweater",
		Description: "Midweight merino wool crewneck, machine washable.",
		PriceMinor:  7400,
		ImageURL:    "/images/merino-crew.jpg",
		SKU:         "KNIT-MC-003",
	},
	{
		ID:          "item-004",
		Name:        "Insulated Travel Mug",
		Description: "16oz double-wall stainless mug, keeps drinks hot for six hours.",
		PriceMinor:  2500,
		ImageURL:    "/images/travel-mug.jpg",
		SKU:         "MUG-IT-004",
	},
	{
		ID:          "item-005",
		Name:        "Linen Throw Blanket",
		Description: "Stonewashed linen throw in a herringbone weave.",
		PriceMinor:  9800,
		ImageURL:    "/images/linen-throw.jpg",
		SKU:         "HOME-LT-005",
	},
	{
		ID:          "item-006",
		Name:        "Desktop Ring Light",
		Description: "USB-powered ring light with three color temperatures and a phone clamp.",
		PriceMinor:  3200,
		ImageURL:    "/images/ring-light.jpg",
		SKU:         "ELEC-RL-006",
	},
}

// Service is a read-only item lookup.
type Service struct {
	items []domain.Item
	byID  map[string]domain.Item
}

// NewService builds a catalog from the given items; with no arguments the
// compiled-in demo set is used.
func NewService(items ...domain.Item) *Service {
	if len(items) == 0 {
		items = demoItems
	}

	byID := make(map[string]domain.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	return &Service{items: items, byID: byID}
}

// All returns every item in catalog order.
func (s *Service) All() []domain.Item {
	result := make([]domain.Item, len(s.items))
	copy(result, s.items)
	return result
}

// Get returns the item by id or domain.ErrItemNotFound.
func (s *Service) Get(id string) (domain.Item, error) {
	item, ok := s.byID[id]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return item, nil
}
