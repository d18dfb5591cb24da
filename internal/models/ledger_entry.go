package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger actions
const (
	ActionDeposit         = "DEPOSIT"
	ActionWithdrawal      = "WITHDRAWAL"
	ActionTransferSend    = "TRANSFER_SEND"
	ActionTransferReceive = "TRANSFER_RECEIVE"
	ActionLGPWToFGPW      = "LGPW_TO_FGPW"
	ActionFGPWToLGPW      = "FGPW_TO_LGPW"
	ActionVaultTransfer   = "VAULT_TRANSFER"
	ActionBnslLock        = "BNSL_LOCK"
	ActionBnslRelease     = "BNSL_RELEASE"
	ActionPayoutCredit    = "PAYOUT_CREDIT"
	ActionFeeDeduction    = "FEE_DEDUCTION"
	ActionAdjustment      = "ADJUSTMENT"
)

// Wallet identifiers
const (
	WalletLGPW     = "FinaPay-LGPW"
	WalletFGPW     = "FinaPay-FGPW"
	WalletVault    = "FinaVault"
	WalletBNSL     = "BNSL"
	WalletExternal = "External"
)

// GramPrecision is the number of decimal places gold quantities are
// tracked to. Amounts with finer precision are rejected, never rounded.
const GramPrecision = 6

// LedgerEntry is one immutable movement of gold against a single wallet.
// Entries are append-only; corrections are issued as new offsetting
// entries, never as updates. WalletSeq orders entries within one wallet's
// chain and EventHash chains each entry to its predecessor so tampering
// with history is detectable.
type LedgerEntry struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	UserID        uint            `gorm:"uniqueIndex:uix_ledger_wallet_seq,priority:1;not null" json:"user_id"`
	Wallet        string          `gorm:"uniqueIndex:uix_ledger_wallet_seq,priority:2;not null" json:"wallet"`
	WalletSeq     int64           `gorm:"uniqueIndex:uix_ledger_wallet_seq,priority:3;not null" json:"wallet_seq"`
	Action        string          `gorm:"not null" json:"action"`
	FromWallet    string          `gorm:"not null" json:"from_wallet"`
	ToWallet      string          `gorm:"not null" json:"to_wallet"`
	GoldGrams     decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"gold_grams"`
	ValueUSD      decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"value_usd"`
	GoldPriceUSD  decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"gold_price_usd_per_gram"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"balance_after_grams"`
	TransactionID string          `gorm:"index:idx_ledger_txn;not null" json:"transaction_id"`
	PlanID        *uint           `gorm:"index:idx_ledger_plan,priority:1" json:"plan_id,omitempty"`
	QuarterIndex  *int            `gorm:"index:idx_ledger_plan,priority:2" json:"quarter_index,omitempty"`
	EventHash     string          `gorm:"not null" json:"event_hash"`
	Metadata      JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

// TableName keeps the historical table name stable across migrations.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// Internal reports whether the entry's owning wallet is one of the
// platform-held wallets, as opposed to the External counter-wallet.
func (e *LedgerEntry) Internal() bool {
	return e.Wallet != WalletExternal
}

// WalletHead is the latest-entry snapshot for one (user, wallet) pair,
// used by balance projection and reconciliation sweeps.
type WalletHead struct {
	UserID       uint            `json:"user_id"`
	Wallet       string          `json:"wallet"`
	WalletSeq    int64           `json:"wallet_seq"`
	BalanceAfter decimal.Decimal `json:"balance_after_grams"`
	EventHash    string          `json:"event_hash"`
}
