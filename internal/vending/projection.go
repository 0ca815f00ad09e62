package vending

import (
	"sort"
	"strconv"
)

// StockStatus annotates an item row in a machine summary.
type StockStatus string

const (
	// StatusOutOfStock marks items with stock <= 0.
	StatusOutOfStock StockStatus = "out_of_stock"
	// StatusLow marks items with 0 < stock < 5.
	StatusLow StockStatus = "low"
	// StatusAvailable marks items with stock >= 5.
	StatusAvailable StockStatus = "available"
)

const lowStockThreshold = 5

// Row is one line of a rendered machine summary.
type Row struct {
	Name         string
	Price        int
	Stock        int
	Status       StockStatus
	PriceDisplay string
}

// Render derives a display-ready snapshot of a machine's items, sorted by
// price ascending with ties in item-insertion order. It is a pure function of
// the machine state and keeps no state of its own.
func Render(m *Machine) []Row {
	if m == nil {
		return nil
	}
	rows := make([]Row, 0, len(m.Items))
	positions := make(map[string]int, len(m.Items))
	for name, it := range m.Items {
		positions[name] = it.Position
		rows = append(rows, Row{
			Name:         name,
			Price:        it.Price,
			Stock:        it.Stock,
			Status:       StockStatusOf(it.Stock),
			PriceDisplay: PriceDisplay(it.Price),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Price != rows[j].Price {
			return rows[i].Price < rows[j].Price
		}
		return positions[rows[i].Name] < positions[rows[j].Name]
	})
	return rows
}

// StockStatusOf maps a stock count to its display status.
func StockStatusOf(stock int) StockStatus {
	switch {
	case stock <= 0:
		return StatusOutOfStock
	case stock < lowStockThreshold:
		return StatusLow
	default:
		return StatusAvailable
	}
}

// PriceDisplay returns the human form of a price: "free" for zero.
func PriceDisplay(price int) string {
	if price == 0 {
		return "free"
	}
	return strconv.Itoa(price)
}
