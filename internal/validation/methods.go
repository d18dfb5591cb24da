package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validator collects field errors for one request.
type Validator struct {
	Errors map[string]string
}

// New creates a new validator
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid checks if there are any validation errors
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError adds an error to the validator
func (v *Validator) AddError(field, message string) {
	v.Errors[field] = message
}

// Check adds an error if the condition is false
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Required checks that a string is not empty.
func (v *Validator) Required(field, value string) {
	v.Check(strings.TrimSpace(value) != "", field, "must not be empty")
}

// PositiveDecimal checks that a decimal is strictly greater than zero.
func (v *Validator) PositiveDecimal(field string, value decimal.Decimal) {
	v.Check(value.IsPositive(), field, "must be greater than zero")
}

// Precision checks that a decimal carries at most places decimal digits.
func (v *Validator) Precision(field string, value decimal.Decimal, places int32) {
	v.Check(value.Equal(value.Truncate(places)), field,
		fmt.Sprintf("must have at most %d decimal places", places))
}

// MaxLength checks that a string does not exceed max characters.
func (v *Validator) MaxLength(field, value string, max int) {
	v.Check(len(value) <= max, field,
		fmt.Sprintf("must be at most %d characters", max))
}

// OneOf checks set membership.
func (v *Validator) OneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")))
}
