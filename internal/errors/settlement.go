package errors

var (
	ErrPlanNotEligible = &DomainError{
		Code:    "PLAN_NOT_ELIGIBLE",
		Message: "plan cannot be settled in its current status",
	}
	ErrMissingRequiredStep = &DomainError{
		Code:    "MISSING_REQUIRED_STEP",
		Message: "required workflow step was never recorded",
	}
	ErrReconciliationMismatch = &DomainError{
		Code:    "RECONCILIATION_MISMATCH",
		Message: "custodial gold does not match digital ledger total",
	}
)
