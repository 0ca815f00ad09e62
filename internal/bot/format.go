package bot

import (
	"fmt"
	"strings"

	"github.com/MellowIQ3/zi-hanki/core/telegram/format"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

func statusLine(row vending.Row) string {
	switch row.Status {
	case vending.StatusOutOfStock:
		return "❌ sold out"
	case vending.StatusLow:
		return fmt.Sprintf("⚠️ low stock (%d left)", row.Stock)
	default:
		return fmt.Sprintf("✅ %d in stock", row.Stock)
	}
}

func priceLine(row vending.Row) string {
	if row.Price == 0 {
		return "free"
	}
	return fmt.Sprintf("%d yen", row.Price)
}

// summaryText renders the machine listing, cheapest first.
func summaryText(machine string, rows []vending.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 *%s*\n", format.EscapeMarkdown(machine))
	if len(rows) == 0 {
		b.WriteString("\n_The machine is empty._")
		return b.String()
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "\n• *%s* — %s — %s",
			format.EscapeMarkdown(row.Name), priceLine(row), statusLine(row))
	}
	return b.String()
}

func receiptText(r vending.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 Here is your *%s* from *%s*!",
		format.EscapeMarkdown(r.Item), format.EscapeMarkdown(r.Machine))
	if r.Payload != "" {
		fmt.Fprintf(&b, "\n\n%s", format.EscapeMarkdown(r.Payload))
	}
	return b.String()
}

func approvalRequestText(req vending.ApprovalRequest, price int) string {
	return fmt.Sprintf(
		"💴 *Purchase request*\n\nMachine: %s\nItem: %s\nPrice: %d yen\nBuyer: `%d`\nProof: %s",
		format.EscapeMarkdown(req.MachineName),
		format.EscapeMarkdown(req.ItemName),
		price,
		req.BuyerID,
		format.EscapeMarkdown(req.PaymentProof),
	)
}

func achievementText(r vending.Receipt) string {
	return fmt.Sprintf("🏆 `%d` bought *%s* from *%s*",
		r.BuyerID, format.EscapeMarkdown(r.Item), format.EscapeMarkdown(r.Machine))
}

func deniedText(req vending.ApprovalRequest) string {
	return fmt.Sprintf(
		"🚫 Your purchase of *%s* from *%s* was not approved.\nIf you believe this is a mistake, contact the operator.",
		format.EscapeMarkdown(req.ItemName), format.EscapeMarkdown(req.MachineName))
}

func pendingLineText(req *vending.ApprovalRequest) string {
	return fmt.Sprintf("• `%s` — %s / %s — buyer `%d`",
		req.ID,
		format.EscapeMarkdown(req.MachineName),
		format.EscapeMarkdown(req.ItemName),
		req.BuyerID,
	)
}
