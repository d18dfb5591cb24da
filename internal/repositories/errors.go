package repositories

import "errors"

var (
	ErrEntryNotFound    = errors.New("ledger entry not found")
	ErrPlanNotFound     = errors.New("plan not found")
	ErrInstanceNotFound = errors.New("workflow instance not found")
	ErrReportNotFound   = errors.New("reconciliation report not found")

	// ErrSerialization is returned when the database aborts a transaction
	// for concurrency reasons (deadlock or serialization failure). Callers
	// retry with fresh reads.
	ErrSerialization = errors.New("transaction serialization conflict")
)
