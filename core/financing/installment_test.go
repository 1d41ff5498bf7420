package financing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMonthlyInstallment(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		rate   string
		tenor  int
		want   int64
	}{
		{name: "12% over a year", amount: 12_000_000, rate: "12", tenor: 12, want: 1_066_185},
		{name: "6% over two years", amount: 10_000_000, rate: "6", tenor: 24, want: 443_206},
		{name: "18% over six months", amount: 5_000_000, rate: "18", tenor: 6, want: 877_626},
		{name: "single month", amount: 1_000_000, rate: "12", tenor: 1, want: 1_010_000},
		{name: "zero rate", amount: 12_000_000, rate: "0", tenor: 12, want: 1_000_000},
		{name: "no tenor", amount: 12_000_000, rate: "12", tenor: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthlyInstallment(decimal.NewFromInt(tt.amount), decimal.RequireFromString(tt.rate), tt.tenor)
			assert.Equal(t, tt.want, got.IntPart())
		})
	}
}

func Test_estimate(t *testing.T) {
	p := Product{ID: "p1", InterestRate: decimal.NewFromInt(12)}
	est := estimate(p, decimal.NewFromInt(12_000_000), 12)

	assert.Equal(t, "p1", est.ProductID)
	assert.True(t, est.MonthlyInstallment.Equal(decimal.NewFromInt(1_066_185)))
	assert.True(t, est.TotalPayment.Equal(decimal.NewFromInt(12_794_220)))
	assert.True(t, est.TotalInterest.Equal(decimal.NewFromInt(794_220)))
}
