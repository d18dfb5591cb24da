package validation

import (
	"fmt"

	"finagold/internal/models"

	"github.com/shopspring/decimal"
)

// GoldAmount validates a gram quantity for any wallet operation.
func (v *Validator) GoldAmount(field string, grams decimal.Decimal) {
	v.PositiveDecimal(field, grams)
	v.Precision(field, grams, models.GramPrecision)
}

// CustomerWallet validates a wallet name a customer may operate on
// directly. External is excluded; it only appears as a counterparty.
func (v *Validator) CustomerWallet(field, wallet string) {
	v.OneOf(field, wallet,
		models.WalletLGPW, models.WalletFGPW, models.WalletVault, models.WalletBNSL)
}

// Tenor validates a plan tenor: whole quarters within the offered range.
func (v *Validator) Tenor(field string, months int) {
	v.Check(months >= models.MinTenorMonths && months <= models.MaxTenorMonths, field,
		fmt.Sprintf("must be between %d and %d months", models.MinTenorMonths, models.MaxTenorMonths))
	v.Check(months%3 == 0, field, "must be a whole number of quarters")
}

// Note validates an optional free-text note.
func (v *Validator) Note(field, value string) {
	v.MaxLength(field, value, MaxNoteLength)
}

// Reference validates an external reference identifier.
func (v *Validator) Reference(field, value string) {
	v.Required(field, value)
	v.MaxLength(field, value, MaxReferenceLength)
}
