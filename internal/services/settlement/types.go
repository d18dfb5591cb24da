package settlement

import (
	"github.com/shopspring/decimal"
)

// EnrollmentRequest opens a new BNSL plan. The enrollment price is
// captured from the market feed at enrollment time and fixed into the
// plan's economic terms.
type EnrollmentRequest struct {
	UserID          uint            `json:"user_id"`
	TenorMonths     int             `json:"tenor_months"`
	GoldSoldGrams   decimal.Decimal `json:"gold_sold_grams"`
	MarginAnnualPct decimal.Decimal `json:"agreed_margin_annual_percent"`
}

// SweepReport summarizes one quarterly sweep run.
type SweepReport struct {
	PlansChecked    int      `json:"plans_checked"`
	QuartersPaid    int      `json:"quarters_paid"`
	PlansMatured    int      `json:"plans_matured"`
	PlansSkipped    int      `json:"plans_skipped"`
	FailedPlanIDs   []uint   `json:"failed_plan_ids,omitempty"`
	FailureMessages []string `json:"failure_messages,omitempty"`
}
