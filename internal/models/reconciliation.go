package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reconciliation statuses
const (
	ReconciliationMatched  = "matched"
	ReconciliationMismatch = "mismatch"
)

// ReconciliationReport is the persisted outcome of one custody-vs-ledger
// sweep. Reports are kept so a mismatch stays visible to operations until
// a later sweep resolves it.
type ReconciliationReport struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	Status        string          `gorm:"index;not null" json:"status"`
	PhysicalGrams decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"physical_gold_grams"`
	DigitalGrams  decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"digital_gold_grams"`
	VarianceGrams decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"variance_grams"`
	ToleranceGrams decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"tolerance_grams"`
	InFlightCount int             `gorm:"not null" json:"in_flight_count"`
	Breakdown     JSON            `gorm:"type:jsonb" json:"breakdown,omitempty"`
	CheckedAt     time.Time       `gorm:"index;not null" json:"checked_at"`
}
