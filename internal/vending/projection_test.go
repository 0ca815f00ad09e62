package vending

import "testing"

func TestRenderSortsByPriceWithStableTies(t *testing.T) {
	m := NewMachine()
	m.Items["expensive"] = Item{Stock: 1, Price: 500, Position: 0}
	m.Items["tie-late"] = Item{Stock: 1, Price: 100, Position: 3}
	m.Items["tie-early"] = Item{Stock: 1, Price: 100, Position: 1}
	m.Items["free"] = Item{Stock: 1, Price: 0, Position: 2}

	rows := Render(m)
	want := []string{"free", "tie-early", "tie-late", "expensive"}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i, name := range want {
		if rows[i].Name != name {
			t.Fatalf("rows[%d] = %s, want %s", i, rows[i].Name, name)
		}
	}
}

func TestStockStatusOf(t *testing.T) {
	cases := []struct {
		stock int
		want  StockStatus
	}{
		{-2, StatusOutOfStock},
		{0, StatusOutOfStock},
		{1, StatusLow},
		{4, StatusLow},
		{5, StatusAvailable},
		{100, StatusAvailable},
	}
	for _, tc := range cases {
		if got := StockStatusOf(tc.stock); got != tc.want {
			t.Fatalf("StockStatusOf(%d) = %s, want %s", tc.stock, got, tc.want)
		}
	}
}

func TestPriceDisplay(t *testing.T) {
	if got := PriceDisplay(0); got != "free" {
		t.Fatalf("PriceDisplay(0) = %q, want free", got)
	}
	if got := PriceDisplay(300); got != "300" {
		t.Fatalf("PriceDisplay(300) = %q", got)
	}
}

func TestRenderEmptyMachine(t *testing.T) {
	if rows := Render(NewMachine()); len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
	if rows := Render(nil); rows != nil {
		t.Fatal("nil machine must render nil")
	}
}

func TestPrefixValidator(t *testing.T) {
	v := PrefixValidator("https://pay.example.test/")
	if !v.Valid("  https://pay.example.test/abc  ") {
		t.Fatal("whitespace-padded matching proof must pass")
	}
	if v.Valid("https://evil.test/https://pay.example.test/") {
		t.Fatal("prefix must anchor at the start")
	}
	if v.Valid("") {
		t.Fatal("empty proof must fail")
	}
	if (PrefixValidator("")).Valid("anything") {
		t.Fatal("empty prefix must reject everything")
	}
}
