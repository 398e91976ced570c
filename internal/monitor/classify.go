package monitor

import (
	"stockwatch/internal/inventory"
	"stockwatch/internal/store"
)

// DefaultLowStockThreshold is the quantity at or below which a shrinking
// stock level warrants a low-stock warning.
const DefaultLowStockThreshold = 5

// Classify maps one (prior, current) observation pair to a transition.
// prev == nil means the product has never been observed for this area, which
// counts as an unavailable baseline: a first sighting in stock is a
// back-in-stock transition.
//
// The function is total: every input pair lands on exactly one case, and
// state-boundary crossings (back-in-stock, sold-out) rank above
// magnitude-only changes (stock-increased, low-stock). Low-stock requires an
// actual decrease so an unchanged low quantity does not re-alert every cycle.
func Classify(prev *store.Observation, cur inventory.Product, threshold int) Transition {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}

	prevIn := prev != nil && prev.InStock && prev.Quantity > 0
	curIn := cur.InStock()

	switch {
	case !prevIn && curIn:
		return TransitionBackInStock
	case prevIn && !curIn:
		return TransitionSoldOut
	case prevIn && curIn && cur.Quantity > prev.Quantity:
		return TransitionStockIncreased
	case prevIn && curIn && cur.Quantity < prev.Quantity && cur.Quantity <= threshold:
		return TransitionLowStock
	default:
		return TransitionNone
	}
}
