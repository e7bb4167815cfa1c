package services

import (
	"fmt"
	"strings"
	"time"

	"campus-cafe/models"
)

// Callback data prefixes used on card buttons.
const (
	CallbackCancel      = "ord_cancel:"
	CallbackRestore     = "ord_restore:"
	CallbackPickup      = "ord_pickup:"
	CallbackOrderDetail = "ord_view:"
	CallbackOrderStatus = "order_status:" // staff: order_status:<id>:<status>
)

// OrderCardButton is one inline button (text + callback_data or url).
type OrderCardButton struct {
	Text         string
	CallbackData string
	URL          string // if set, use as URL button instead of callback
}

// OrderCardContent is the text and optional inline keyboard for an order card.
type OrderCardContent struct {
	Text    string
	Buttons [][]OrderCardButton
}

func StatusLabel(s models.OrderStatus) string {
	switch s {
	case models.StatusPending:
		return "⏳ Pending"
	case models.StatusReady:
		return "✅ Ready for pickup"
	case models.StatusCompleted:
		return "🎉 Completed"
	case models.StatusCancelled:
		return "❌ Cancelled"
	default:
		return string(s)
	}
}

func writeLines(b *strings.Builder, g OrderGroup) {
	for _, l := range g.Lines {
		if l.Item == nil {
			continue
		}
		fmt.Fprintf(b, "• %s × %d\n", l.Item.Name, l.Quantity)
	}
}

// BuildCustomerCard returns the customer's card for one order with the
// actions the current status allows.
func BuildCustomerCard(g OrderGroup, loc *time.Location) OrderCardContent {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\nPickup code: %s\n\n", g.ID, g.OrderCode)
	writeLines(&b, g)
	fmt.Fprintf(&b, "\nTotal: KSh %s\n", g.TotalAmount)
	fmt.Fprintf(&b, "Status: %s\n", StatusLabel(g.Status))
	if g.Status == models.StatusPending || g.Status == models.StatusReady {
		fmt.Fprintf(&b, "Pickup around %s\n", g.EstimatedPickupTime.In(loc).Format("15:04"))
	}
	if g.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", g.Notes)
	}

	var buttons [][]OrderCardButton
	switch g.Status {
	case models.StatusPending:
		buttons = [][]OrderCardButton{{{Text: "❌ Cancel order", CallbackData: CallbackCancel + g.ID}}}
	case models.StatusReady:
		buttons = [][]OrderCardButton{{{Text: "🤝 I picked it up", CallbackData: CallbackPickup + g.ID}}}
	case models.StatusCancelled:
		buttons = [][]OrderCardButton{{{Text: "↩️ Restore order", CallbackData: CallbackRestore + g.ID}}}
	}
	return OrderCardContent{Text: strings.TrimRight(b.String(), "\n"), Buttons: buttons}
}

// BuildOrdersListCard is the "my orders" overview: one line per order and a
// button to open each.
func BuildOrdersListCard(groups []OrderGroup, loc *time.Location) OrderCardContent {
	if len(groups) == 0 {
		return OrderCardContent{Text: "You have no orders yet. Use /menu to order."}
	}
	var b strings.Builder
	b.WriteString("Your orders\n\n")
	var buttons [][]OrderCardButton
	for _, g := range groups {
		fmt.Fprintf(&b, "%s · %s · KSh %s · %s\n", g.OrderTime.In(loc).Format("Jan 2 15:04"), g.OrderCode, g.TotalAmount, StatusLabel(g.Status))
		buttons = append(buttons, []OrderCardButton{{Text: "Order " + g.OrderCode, CallbackData: CallbackOrderDetail + g.ID}})
	}
	return OrderCardContent{Text: strings.TrimRight(b.String(), "\n"), Buttons: buttons}
}

// BuildStaffCard returns the kitchen's card. Buttons: Ready / Cancel while
// pending, Picked up while ready.
func BuildStaffCard(g OrderGroup, loc *time.Location) OrderCardContent {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 %s (code %s)\n", g.ID, g.OrderCode)
	fmt.Fprintf(&b, "👤 %s · %s\n", g.CustomerName, g.AdmissionNumber)
	fmt.Fprintf(&b, "🕒 %s\n\n", g.OrderTime.In(loc).Format("15:04"))
	writeLines(&b, g)
	if g.Notes != "" {
		fmt.Fprintf(&b, "\n📝 %s\n", g.Notes)
	}
	fmt.Fprintf(&b, "\n💵 KSh %s (%s, %s)\n", g.TotalAmount, models.PaymentMethodMpesa, g.PaymentStatus)
	fmt.Fprintf(&b, "Status: %s", StatusLabel(g.Status))

	var buttons [][]OrderCardButton
	switch g.Status {
	case models.StatusPending:
		buttons = [][]OrderCardButton{{
			{Text: "✅ Ready", CallbackData: CallbackOrderStatus + g.ID + ":" + string(models.StatusReady)},
			{Text: "❌ Cancel", CallbackData: CallbackOrderStatus + g.ID + ":" + string(models.StatusCancelled)},
		}}
	case models.StatusReady:
		buttons = [][]OrderCardButton{{
			{Text: "🤝 Picked up", CallbackData: CallbackOrderStatus + g.ID + ":" + string(models.StatusCompleted)},
		}}
	}
	return OrderCardContent{Text: b.String(), Buttons: buttons}
}

// ParseStaffCallback splits "order_status:<id>:<status>". Order ids contain
// dashes but no colons.
func ParseStaffCallback(data string) (id string, status models.OrderStatus, ok bool) {
	rest, found := strings.CutPrefix(data, CallbackOrderStatus)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", "", false
	}
	status = models.OrderStatus(rest[i+1:])
	if !status.Valid() {
		return "", "", false
	}
	return rest[:i], status, true
}
