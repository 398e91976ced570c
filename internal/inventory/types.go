// Package inventory talks to the shop's inventory API: resolving a pincode
// to its serving substore (our delivery area) and fetching the current
// product availability snapshot for an area.
package inventory

import (
	"context"
	"errors"
	"fmt"
)

// ErrAreaNotFound means the pincode/area is not serviceable by the shop.
var ErrAreaNotFound = errors.New("delivery area not serviceable")

// TransientError wraps network, rate-limit and server-side failures.
// Callers skip the affected area for the cycle and try again next time.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("inventory %s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err originates from a retriable fetch failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Product is one availability record from a snapshot. Quantity is the
// area-specific available stock, not the warehouse total.
type Product struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"available"`
	Category string  `json:"category"`
}

// InStock reports whether the product can currently be ordered in the area.
func (p Product) InStock() bool { return p.Quantity > 0 }

// AreaInfo identifies the substore serving a pincode.
type AreaInfo struct {
	AreaID  string
	Name    string
	Pincode string
	City    string
	State   string
}

// Source is the engine-facing contract of the inventory API.
type Source interface {
	// FetchSnapshot returns the full availability snapshot for an area.
	// Failures are either *TransientError or ErrAreaNotFound.
	FetchSnapshot(ctx context.Context, areaID, pincode string) ([]Product, error)

	// ResolveArea validates a pincode and returns the serving area.
	ResolveArea(ctx context.Context, pincode string) (AreaInfo, error)
}
