package settlement

import (
	"finagold/internal/models"

	"github.com/shopspring/decimal"
)

// Fee and penalty rates applied on early termination, as fractions of
// total sale proceeds (base + total margin).
var (
	AdminFeeRate     = decimal.NewFromFloat(0.01)
	EarlyPenaltyRate = decimal.NewFromFloat(0.05)
)

// TerminationQuote is the full economics of an early termination,
// computed from stored inputs only so it replays exactly.
type TerminationQuote struct {
	BaseValueUSD     decimal.Decimal `json:"base_value_usd"`
	AdminFeeUSD      decimal.Decimal `json:"admin_fee_usd"`
	EarlyPenaltyUSD  decimal.Decimal `json:"early_penalty_usd"`
	ReimbursementUSD decimal.Decimal `json:"reimbursement_usd"`
	NetUSD           decimal.Decimal `json:"net_usd"`
	FinalGrams       decimal.Decimal `json:"final_grams"`
	MarketPriceUSD   decimal.Decimal `json:"market_price_usd_per_gram"`
}

// QuarterlyDisbursementGrams converts the plan's fixed quarterly margin
// into grams at the disbursement-date market price. The monetary amount
// is fixed at enrollment; the gram quantity floats with the market.
// Rounds down to gram precision so rounding can never manufacture gold.
func QuarterlyDisbursementGrams(plan *models.BnslPlan, marketPrice decimal.Decimal) decimal.Decimal {
	return plan.QuarterlyMarginUSD().Div(marketPrice).RoundFloor(models.GramPrecision)
}

// MaturityGrams converts the deferred base component into grams at the
// maturity-date market price.
func MaturityGrams(plan *models.BnslPlan, marketPrice decimal.Decimal) decimal.Decimal {
	return plan.BasePriceComponentUSD().Div(marketPrice).RoundFloor(models.GramPrecision)
}

// EarlyTerminationQuote computes the settlement for exiting before
// maturity. Valuation is the lower of original face value and current
// market value of the sold gold: the participant never benefits from
// downside protection on early exit. Deductions are the admin fee, the
// early penalty, and every margin payout already disbursed (at its USD
// value on the disbursement date). A negative net floors to zero; prior
// payouts are never clawed back.
func EarlyTerminationQuote(plan *models.BnslPlan, marketPrice, reimbursedUSD decimal.Decimal) TerminationQuote {
	base := plan.BasePriceComponentUSD()
	if marketPrice.LessThan(plan.EnrollmentPrice) {
		base = plan.GoldSoldGrams.Mul(marketPrice)
	}

	proceeds := plan.TotalSaleProceedsUSD()
	adminFee := AdminFeeRate.Mul(proceeds)
	penalty := EarlyPenaltyRate.Mul(proceeds)

	net := base.Sub(adminFee).Sub(penalty).Sub(reimbursedUSD)
	if net.IsNegative() {
		net = decimal.Zero
	}

	return TerminationQuote{
		BaseValueUSD:     base,
		AdminFeeUSD:      adminFee,
		EarlyPenaltyUSD:  penalty,
		ReimbursementUSD: reimbursedUSD,
		NetUSD:           net,
		FinalGrams:       net.Div(marketPrice).RoundFloor(models.GramPrecision),
		MarketPriceUSD:   marketPrice,
	}
}
