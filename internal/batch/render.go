package batch

import (
	"fmt"
	"strings"

	"github.com/olyamironova/itch-replay/internal/domain"
)

// describeEvent renders one event as a single debug line, used only for
// the per-batch event dump (suppressed entirely in quiet mode).
func describeEvent(ev domain.Event) string {
	switch ev.Kind {
	case domain.KindStateChange:
		return fmt.Sprintf("[MSG] ns=%d type=STATE book=%d state=%s", ev.Nanosec, ev.InstrumentID, ev.State)
	case domain.KindAddOrder:
		return fmt.Sprintf("[MSG] ns=%d type=ADD id=%d side=%s qty=%d px=%d",
			ev.Nanosec, ev.OrderID, ev.Side, ev.Quantity, ev.Price)
	case domain.KindExecuteOrder:
		return fmt.Sprintf("[MSG] ns=%d type=EXEC id=%d side=%s qty=%d",
			ev.Nanosec, ev.OrderID, ev.Side, ev.Quantity)
	case domain.KindDeleteOrder:
		return fmt.Sprintf("[MSG] ns=%d type=DEL id=%d side=%s", ev.Nanosec, ev.OrderID, ev.Side)
	default:
		return fmt.Sprintf("[MSG] ns=%d type=OTHER", ev.Nanosec)
	}
}

// formatSnapshot renders a top-N book snapshot the same way the reference
// implementation's debug printer does: bids then asks, each as indexed
// (price, quantity) rows.
func formatSnapshot(ns uint32, snap domain.BookSnapshot) string {
	var b strings.Builder
	state := "N"
	if snap.TradingOpen {
		state = "Y"
	}
	fmt.Fprintf(&b, "---- SNAPSHOT ns=%d book=%d open=%s ----\n", ns, snap.InstrumentID, state)

	b.WriteString("BIDS (price, qty):\n")
	if len(snap.Bids) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, lvl := range snap.Bids {
		fmt.Fprintf(&b, "  [%d] %d, %d\n", i, lvl.Price, lvl.Quantity)
	}

	b.WriteString("ASKS (price, qty):\n")
	if len(snap.Asks) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, lvl := range snap.Asks {
		fmt.Fprintf(&b, "  [%d] %d, %d\n", i, lvl.Price, lvl.Quantity)
	}

	b.WriteString("------------------------------")
	return b.String()
}
