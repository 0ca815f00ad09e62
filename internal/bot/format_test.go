package bot

import (
	"strings"
	"testing"

	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

func TestSummaryText(t *testing.T) {
	m := vending.NewMachine()
	m.Items["coffee"] = vending.Item{Stock: 2, Price: 300, Position: 0}
	m.Items["sticker"] = vending.Item{Stock: 10, Price: 0, Position: 1}
	m.Items["gone"] = vending.Item{Stock: 0, Price: 100, Position: 2}

	text := summaryText("lobby", vending.Render(m))
	lines := strings.Split(text, "\n")
	if !strings.Contains(lines[0], "lobby") {
		t.Fatalf("header = %q", lines[0])
	}
	// cheapest first: free sticker, then sold-out 100, then coffee
	body := strings.Join(lines[1:], "\n")
	si := strings.Index(body, "sticker")
	gi := strings.Index(body, "gone")
	ci := strings.Index(body, "coffee")
	if !(si < gi && gi < ci) {
		t.Fatalf("order wrong:\n%s", text)
	}
	if !strings.Contains(body, "free") {
		t.Fatalf("free price missing:\n%s", text)
	}
	if !strings.Contains(body, "sold out") {
		t.Fatalf("sold out status missing:\n%s", text)
	}
	if !strings.Contains(body, "low stock") {
		t.Fatalf("low stock status missing:\n%s", text)
	}
}

func TestSummaryTextEmptyMachine(t *testing.T) {
	text := summaryText("lobby", nil)
	if !strings.Contains(text, "empty") {
		t.Fatalf("text = %q", text)
	}
}

func TestEscapesMarkdownInNames(t *testing.T) {
	m := vending.NewMachine()
	m.Items["a*b"] = vending.Item{Stock: 1, Price: 0, Position: 0}
	text := summaryText("x_y", vending.Render(m))
	if !strings.Contains(text, `a\*b`) || !strings.Contains(text, `x\_y`) {
		t.Fatalf("names not escaped:\n%s", text)
	}
}
