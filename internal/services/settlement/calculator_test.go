package settlement

import (
	"testing"
	"time"

	"finagold/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlan(grams, price, marginPct string, tenorMonths int) *models.BnslPlan {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.BnslPlan{
		ID:              1,
		UserID:          1,
		TenorMonths:     tenorMonths,
		GoldSoldGrams:   decimal.RequireFromString(grams),
		EnrollmentPrice: decimal.RequireFromString(price),
		MarginAnnualPct: decimal.RequireFromString(marginPct),
		Status:          models.PlanStatusActive,
		StartDate:       start,
		MaturityDate:    start.AddDate(0, tenorMonths, 0),
	}
}

func TestPlanEconomics(t *testing.T) {
	plan := newPlan("100", "1000", "10", 12)

	assert.True(t, decimal.RequireFromString("100000").Equal(plan.BasePriceComponentUSD()))
	assert.True(t, decimal.RequireFromString("10000").Equal(plan.TotalMarginComponentUSD()))
	assert.True(t, decimal.RequireFromString("110000").Equal(plan.TotalSaleProceedsUSD()))
	assert.Equal(t, 4, plan.Quarters())
	assert.True(t, decimal.RequireFromString("2500").Equal(plan.QuarterlyMarginUSD()))
}

func TestPlanEconomics_LongerTenor(t *testing.T) {
	// 24 months doubles the margin but not the base.
	plan := newPlan("100", "1000", "10", 24)

	assert.True(t, decimal.RequireFromString("20000").Equal(plan.TotalMarginComponentUSD()))
	assert.Equal(t, 8, plan.Quarters())
	assert.True(t, decimal.RequireFromString("2500").Equal(plan.QuarterlyMarginUSD()))
}

func TestQuarterlyDisbursementGrams(t *testing.T) {
	plan := newPlan("100", "1000", "10", 12)

	tests := []struct {
		name        string
		marketPrice string
		wantGrams   string
	}{
		{"price above enrollment", "1250", "2"},
		{"price at enrollment", "1000", "2.5"},
		{"price below enrollment buys more grams", "800", "3.125"},
		{"non-terminating division rounds down", "1200", "2.083333"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuarterlyDisbursementGrams(plan, decimal.RequireFromString(tt.marketPrice))
			assert.True(t, decimal.RequireFromString(tt.wantGrams).Equal(got),
				"got %s", got)
		})
	}
}

func TestQuarterlyDisbursementGrams_FixedUSDFloatingGrams(t *testing.T) {
	plan := newPlan("100", "1000", "10", 12)

	low := QuarterlyDisbursementGrams(plan, decimal.RequireFromString("900"))
	high := QuarterlyDisbursementGrams(plan, decimal.RequireFromString("1100"))

	// The monetary amount is fixed, so a higher market price always
	// yields fewer grams.
	assert.True(t, high.LessThan(low))
}

func TestMaturityGrams(t *testing.T) {
	plan := newPlan("100", "1000", "10", 12)

	// Base component 100000 USD at 1250/g.
	got := MaturityGrams(plan, decimal.RequireFromString("1250"))
	assert.True(t, decimal.RequireFromString("80").Equal(got), "got %s", got)
}

func TestEarlyTerminationQuote(t *testing.T) {
	plan := newPlan("100", "1000", "10", 12)

	t.Run("market below enrollment uses market valuation", func(t *testing.T) {
		// Two quarters already paid at 2500 USD each.
		reimbursed := decimal.RequireFromString("5000")
		quote := EarlyTerminationQuote(plan, decimal.RequireFromString("900"), reimbursed)

		assert.True(t, decimal.RequireFromString("90000").Equal(quote.BaseValueUSD))
		assert.True(t, decimal.RequireFromString("1100").Equal(quote.AdminFeeUSD))
		assert.True(t, decimal.RequireFromString("5500").Equal(quote.EarlyPenaltyUSD))
		assert.True(t, decimal.RequireFromString("78400").Equal(quote.NetUSD))
		assert.True(t, decimal.RequireFromString("87.111111").Equal(quote.FinalGrams),
			"got %s", quote.FinalGrams)
	})

	t.Run("market above enrollment keeps face valuation", func(t *testing.T) {
		quote := EarlyTerminationQuote(plan, decimal.RequireFromString("1200"), decimal.Zero)

		// No upside on early exit: base stays at 100g x 1000.
		assert.True(t, decimal.RequireFromString("100000").Equal(quote.BaseValueUSD))
		assert.True(t, decimal.RequireFromString("93400").Equal(quote.NetUSD))
	})

	t.Run("net floors at zero and payouts are never clawed back", func(t *testing.T) {
		// A collapsed price with heavy reimbursement drives net negative.
		reimbursed := decimal.RequireFromString("9000")
		quote := EarlyTerminationQuote(plan, decimal.RequireFromString("150"), reimbursed)

		require.True(t, quote.NetUSD.IsZero(), "net %s", quote.NetUSD)
		assert.True(t, quote.FinalGrams.IsZero())
	})

	t.Run("fees are charged on total sale proceeds regardless of market", func(t *testing.T) {
		cheap := EarlyTerminationQuote(plan, decimal.RequireFromString("500"), decimal.Zero)
		dear := EarlyTerminationQuote(plan, decimal.RequireFromString("1500"), decimal.Zero)

		assert.True(t, cheap.AdminFeeUSD.Equal(dear.AdminFeeUSD))
		assert.True(t, cheap.EarlyPenaltyUSD.Equal(dear.EarlyPenaltyUSD))
	})

	t.Run("more reimbursement never increases the quote", func(t *testing.T) {
		price := decimal.RequireFromString("950")
		prev := EarlyTerminationQuote(plan, price, decimal.Zero).NetUSD
		for _, r := range []string{"2500", "5000", "7500"} {
			cur := EarlyTerminationQuote(plan, price, decimal.RequireFromString(r)).NetUSD
			assert.True(t, cur.LessThanOrEqual(prev), "reimbursed %s", r)
			prev = cur
		}
	})
}

func TestQuarterDueDate(t *testing.T) {
	plan := newPlan("100", "1000", "10", 12)

	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), plan.QuarterDueDate(1))
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), plan.QuarterDueDate(4))
	assert.Equal(t, plan.MaturityDate, plan.QuarterDueDate(plan.Quarters()))
}
