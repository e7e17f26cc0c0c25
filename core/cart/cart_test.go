package cart

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestItemTotal(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		discount string
		quantity int
		want     string
	}{
		{"singleUnit", "11.00", "0", 1, "11.00"},
		{"discountedLine", "5.00", "10", 3, "13.50"},
		{"zeroQuantity", "9.99", "0", 0, "0"},
		{"centsRounding", "0.10", "0", 3, "0.30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := Item{
				Price:    decimal.RequireFromString(tt.price),
				Discount: decimal.RequireFromString(tt.discount),
				Quantity: tt.quantity,
			}

			want := decimal.RequireFromString(tt.want)
			if got := it.Total(); !got.Equal(want) {
				t.Errorf("Total() = %s, want %s", got, want)
			}
		})
	}
}
