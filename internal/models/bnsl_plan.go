package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan statuses
const (
	PlanStatusActive     = "active"
	PlanStatusMatured    = "matured"
	PlanStatusTerminated = "terminated"
)

// Tenor bounds, in months. Tenors are whole quarters.
const (
	MinTenorMonths = 12
	MaxTenorMonths = 60
)

// BnslPlan is a structured "lock gold now, receive payments later" plan.
// Economic terms are immutable after enrollment; only Status and the
// terminal timestamps change, and every payout is a ledger entry.
type BnslPlan struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	UserID          uint            `gorm:"index;not null" json:"user_id"`
	TenorMonths     int             `gorm:"not null" json:"tenor_months"`
	GoldSoldGrams   decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"gold_sold_grams"`
	EnrollmentPrice decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"enrollment_price_usd_per_gram"`
	MarginAnnualPct decimal.Decimal `gorm:"type:numeric(10,4);not null" json:"agreed_margin_annual_percent"`
	Status          string          `gorm:"not null;default:'active'" json:"status"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	MaturityDate    time.Time       `gorm:"not null" json:"maturity_date"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// BasePriceComponentUSD is the deferred face-value portion of the sale:
// goldSoldGrams x enrollmentPriceUsdPerGram.
func (p *BnslPlan) BasePriceComponentUSD() decimal.Decimal {
	return p.GoldSoldGrams.Mul(p.EnrollmentPrice)
}

// TotalMarginComponentUSD is the full margin owed over the plan's life:
// base x marginAnnualPercent/100 x tenorMonths/12.
func (p *BnslPlan) TotalMarginComponentUSD() decimal.Decimal {
	return p.BasePriceComponentUSD().
		Mul(p.MarginAnnualPct).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(int64(p.TenorMonths))).
		Div(decimal.NewFromInt(12))
}

// TotalSaleProceedsUSD is base plus total margin, the figure fee and
// penalty rates apply to on early termination.
func (p *BnslPlan) TotalSaleProceedsUSD() decimal.Decimal {
	return p.BasePriceComponentUSD().Add(p.TotalMarginComponentUSD())
}

// Quarters is the number of quarterly disbursements over the tenor.
func (p *BnslPlan) Quarters() int { return p.TenorMonths / 3 }

// QuarterlyMarginUSD is the fixed monetary margin paid each quarter.
func (p *BnslPlan) QuarterlyMarginUSD() decimal.Decimal {
	return p.TotalMarginComponentUSD().Div(decimal.NewFromInt(int64(p.Quarters())))
}

// QuarterDueDate returns when the given quarter's disbursement falls due.
// Quarters are 1-based.
func (p *BnslPlan) QuarterDueDate(quarter int) time.Time {
	return p.StartDate.AddDate(0, 3*quarter, 0)
}

// Terminal reports whether the plan reached a terminal status.
func (p *BnslPlan) Terminal() bool {
	return p.Status == PlanStatusMatured || p.Status == PlanStatusTerminated
}
