package transfer

import (
	"github.com/shopspring/decimal"
)

// DepositRequest confirms fiat or physical gold received externally and
// credits the user's liquid wallet.
type DepositRequest struct {
	UserID      uint            `json:"user_id"`
	GoldGrams   decimal.Decimal `json:"gold_grams"`
	ExternalRef string          `json:"external_ref"`
}

// WithdrawalRequest moves gold out of the platform to the user's bank
// or physical delivery; the liquid wallet is debited.
type WithdrawalRequest struct {
	UserID    uint            `json:"user_id"`
	GoldGrams decimal.Decimal `json:"gold_grams"`
}

// TransferRequest moves gold between two users' liquid wallets.
type TransferRequest struct {
	FromUserID uint            `json:"from_user_id"`
	ToUserID   uint            `json:"to_user_id"`
	GoldGrams  decimal.Decimal `json:"gold_grams"`
	Note       string          `json:"note,omitempty"`
}

// ConversionRequest moves gold between a user's liquid and flexible
// wallets, in either direction.
type ConversionRequest struct {
	UserID     uint            `json:"user_id"`
	FromWallet string          `json:"from_wallet"`
	ToWallet   string          `json:"to_wallet"`
	GoldGrams  decimal.Decimal `json:"gold_grams"`
}

// VaultRequest moves gold between the liquid wallet and allocated vault
// storage. Custody confirmation arrives asynchronously from the vault
// operator and is recorded against the returned flow instance.
type VaultRequest struct {
	UserID    uint            `json:"user_id"`
	ToVault   bool            `json:"to_vault"`
	GoldGrams decimal.Decimal `json:"gold_grams"`
}

// OperationResult reports a committed wallet operation.
type OperationResult struct {
	TransactionID  string          `json:"transaction_id"`
	FlowInstanceID string          `json:"flow_instance_id"`
	GoldGrams      decimal.Decimal `json:"gold_grams"`
	ValueUSD       decimal.Decimal `json:"value_usd"`
	GoldPriceUSD   decimal.Decimal `json:"gold_price_usd"`
}
