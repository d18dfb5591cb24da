package errors

var (
	ErrInsufficientBalance = &DomainError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient wallet balance",
	}
	ErrConcurrentModification = &DomainError{
		Code:    "CONCURRENT_MODIFICATION",
		Message: "wallet was modified concurrently, retry with fresh balances",
	}
	ErrInvalidEntry = &DomainError{
		Code:    "INVALID_ENTRY",
		Message: "invalid ledger entry",
	}
)
