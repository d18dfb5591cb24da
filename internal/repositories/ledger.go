package repositories

import (
	"context"
	"time"

	"finagold/internal/models"

	"github.com/shopspring/decimal"
)

// ConservationViolation is a transaction group whose internal legs do not
// sum to zero grams. Surfaced by reconciliation as a diffable finding.
type ConservationViolation struct {
	TransactionID string          `json:"transaction_id"`
	SumGrams      decimal.Decimal `json:"sum_grams"`
	EntryCount    int             `json:"entry_count"`
}

// HeadMismatch is a wallet whose folded entry total disagrees with the
// balance snapshot on its latest entry.
type HeadMismatch struct {
	UserID        uint            `json:"user_id"`
	Wallet        string          `json:"wallet"`
	FoldedGrams   decimal.Decimal `json:"folded_grams"`
	SnapshotGrams decimal.Decimal `json:"snapshot_grams"`
}

// LedgerRepository is the persistence contract for the append-only gold
// ledger. Entries are never updated or deleted through this interface.
type LedgerRepository interface {
	// ExecuteInTransaction runs fn against a transactional copy of the
	// repository. Either every write inside fn commits or none do.
	ExecuteInTransaction(ctx context.Context, fn func(tx LedgerRepository) error) error

	// LockWallet serializes writers on one (user, wallet) pair for the
	// remainder of the surrounding transaction. Must be called inside
	// ExecuteInTransaction.
	LockWallet(ctx context.Context, userID uint, wallet string) error

	// LockPlan serializes settlement work on one plan for the remainder
	// of the surrounding transaction.
	LockPlan(ctx context.Context, planID uint) error

	WalletHead(ctx context.Context, userID uint, wallet string) (*models.LedgerEntry, error)
	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error

	EntriesForWallet(ctx context.Context, userID uint, wallet string, afterSeq int64, limit int) ([]models.LedgerEntry, error)
	EntriesForTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
	EntriesForUser(ctx context.Context, userID uint, limit, offset int) ([]models.LedgerEntry, int64, error)
	EntriesInRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.LedgerEntry, error)

	FoldWalletBalance(ctx context.Context, userID uint, wallet string) (decimal.Decimal, error)
	TotalDigitalGrams(ctx context.Context) (decimal.Decimal, error)
	ListWalletHeads(ctx context.Context) ([]models.WalletHead, error)

	DisbursementExists(ctx context.Context, planID uint, quarterIndex int) (bool, error)
	SumPayoutValueUSD(ctx context.Context, planID uint) (decimal.Decimal, error)

	// Plan writes live here so a plan can only be created or closed in
	// the same transaction that commits its ledger entries.
	CreatePlan(ctx context.Context, plan *models.BnslPlan) error
	GetPlanForUpdate(ctx context.Context, planID uint) (*models.BnslPlan, error)
	SetPlanStatus(ctx context.Context, planID uint, status string, closedAt time.Time) error

	ConservationViolations(ctx context.Context) ([]ConservationViolation, error)
	HeadMismatches(ctx context.Context) ([]HeadMismatch, error)
}
