// Package monitor implements the stock reconciliation engine: fetch a fresh
// inventory snapshot per delivery area, diff it against the stored
// observation baseline, classify per-product transitions and fan intents out
// to subscribers. The cron-backed Scheduler drives RunCycle on a fixed
// interval without overlap.
package monitor

import "time"

// Transition is a classified change in a product's availability state
// between two consecutive observations.
type Transition string

const (
	TransitionNone           Transition = ""
	TransitionBackInStock    Transition = "back_in_stock"
	TransitionStockIncreased Transition = "stock_increased"
	TransitionLowStock       Transition = "low_stock"
	TransitionSoldOut        Transition = "sold_out"
)

// Intent is an emitted, not-yet-sent instruction to alert one user of one
// transition. Intents live for one cycle only; they are never persisted.
type Intent struct {
	UserID      int64
	SKU         string
	Kind        Transition
	ProductName string
	Price       float64
	Pincode     string
	Quantity    int
	// Delta is the quantity change against the prior observation
	// (new quantity when there was no prior observation).
	Delta int
}

// Result summarizes one dispatch batch.
type Result struct {
	Sent    int
	Failed  int
	Deduped int
}

// CycleStats summarizes one full reconciliation cycle.
type CycleStats struct {
	Areas        int
	AreasSkipped int
	Intents      int
	Sent         int
	Failed       int
	Duration     time.Duration
}
