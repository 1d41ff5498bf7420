package financing

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// MonthlyInstallment computes the annuity installment of a loan, rounded to whole rupiah.
// annualRate is a percentage; a zero rate splits the amount evenly over the tenor.
func MonthlyInstallment(amount, annualRate decimal.Decimal, tenorMonths int) decimal.Decimal {
	if tenorMonths <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(tenorMonths))
	if annualRate.IsZero() {
		return amount.Div(n).Round(0)
	}

	// A = P * r / (1 - (1+r)^-n)
	r := annualRate.Div(hundred).Div(twelve)
	growth := decimal.NewFromInt(1).Add(r).Pow(n)
	discount := decimal.NewFromInt(1).Sub(decimal.NewFromInt(1).DivRound(growth, 16))
	return amount.Mul(r).DivRound(discount, 16).Round(0)
}

func estimate(p Product, amount decimal.Decimal, tenorMonths int) Estimate {
	inst := MonthlyInstallment(amount, p.InterestRate, tenorMonths)
	total := inst.Mul(decimal.NewFromInt(int64(tenorMonths)))
	return Estimate{
		ProductID:          p.ID,
		Amount:             amount,
		TenorMonths:        tenorMonths,
		InterestRate:       p.InterestRate,
		MonthlyInstallment: inst,
		TotalPayment:       total,
		TotalInterest:      total.Sub(amount),
	}
}
