package reconciliation

import "github.com/shopspring/decimal"

var (
	// DefaultBaseTolerance absorbs custody rounding on a quiet book.
	DefaultBaseTolerance = decimal.RequireFromString("0.01")

	// DefaultPerInFlightTolerance is the slack granted per open workflow.
	DefaultPerInFlightTolerance = decimal.RequireFromString("0.001")
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)
