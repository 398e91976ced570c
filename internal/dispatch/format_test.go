package dispatch

import (
	"strings"
	"testing"

	"stockwatch/internal/monitor"
)

func TestRenderMessageBackInStock(t *testing.T) {
	t.Parallel()
	msg := renderMessage(monitor.Intent{
		Kind:        monitor.TransitionBackInStock,
		ProductName: "Whey Protein 1kg",
		Pincode:     "110001",
		Quantity:    8,
		Price:       2499,
	})
	for _, want := range []string{"STOCK ALERT", "Whey Protein 1kg", "110001", "8 units", "₹2499"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestRenderMessageStockIncreasedShowsSignedDelta(t *testing.T) {
	t.Parallel()
	msg := renderMessage(monitor.Intent{
		Kind:        monitor.TransitionStockIncreased,
		ProductName: "Whey",
		Quantity:    15,
		Delta:       5,
	})
	if !strings.Contains(msg, "(+5)") {
		t.Fatalf("expected signed delta in message:\n%s", msg)
	}
}

func TestRenderMessageLowStock(t *testing.T) {
	t.Parallel()
	msg := renderMessage(monitor.Intent{
		Kind:        monitor.TransitionLowStock,
		ProductName: "Whey",
		Quantity:    3,
	})
	if !strings.Contains(msg, "LOW STOCK") || !strings.Contains(msg, "Only 3 left") {
		t.Fatalf("unexpected low stock message:\n%s", msg)
	}
}

func TestRenderMessageSoldOutOmitsQuantity(t *testing.T) {
	t.Parallel()
	msg := renderMessage(monitor.Intent{
		Kind:        monitor.TransitionSoldOut,
		ProductName: "Whey",
		Quantity:    0,
	})
	if !strings.Contains(msg, "SOLD OUT") {
		t.Fatalf("unexpected sold out message:\n%s", msg)
	}
	if strings.Contains(msg, "Quantity") {
		t.Fatalf("sold out message should not list a quantity:\n%s", msg)
	}
}
