package dispatch

import (
	"fmt"
	"strings"

	"stockwatch/internal/monitor"
)

// renderMessage builds the Telegram Markdown body for one intent.
func renderMessage(in monitor.Intent) string {
	var b strings.Builder

	switch in.Kind {
	case monitor.TransitionBackInStock:
		fmt.Fprintf(&b, "🟢 *STOCK ALERT*\n\n*%s*\nis now available!\n\n", in.ProductName)
		fmt.Fprintf(&b, "📍 Pincode: %s\n", in.Pincode)
		fmt.Fprintf(&b, "📦 Quantity: %d units\n", in.Quantity)
		fmt.Fprintf(&b, "💰 Price: ₹%.0f\n\n", in.Price)
		b.WriteString("_Hurry! Limited stock available._")

	case monitor.TransitionStockIncreased:
		fmt.Fprintf(&b, "📦 *STOCK UPDATE*\n\n*%s*\nStock increased! (%+d)\n\n", in.ProductName, in.Delta)
		fmt.Fprintf(&b, "📍 Pincode: %s\n", in.Pincode)
		fmt.Fprintf(&b, "📦 Quantity: %d units\n", in.Quantity)
		fmt.Fprintf(&b, "💰 Price: ₹%.0f", in.Price)

	case monitor.TransitionLowStock:
		fmt.Fprintf(&b, "⚠️ *LOW STOCK WARNING*\n\n*%s*\nOnly %d left!\n\n", in.ProductName, in.Quantity)
		fmt.Fprintf(&b, "📍 Pincode: %s\n", in.Pincode)
		fmt.Fprintf(&b, "💰 Price: ₹%.0f\n\n", in.Price)
		b.WriteString("_Order soon before it's gone!_")

	case monitor.TransitionSoldOut:
		fmt.Fprintf(&b, "🔴 *SOLD OUT*\n\n*%s*\nis now out of stock.\n\n", in.ProductName)
		fmt.Fprintf(&b, "📍 Pincode: %s\n\n", in.Pincode)
		b.WriteString("_I'll notify you when it's back!_")

	default:
		fmt.Fprintf(&b, "*%s*: %s (qty %d)", in.ProductName, in.Kind, in.Quantity)
	}

	return b.String()
}
