package ledger

import (
	"context"
	"time"

	"finagold/internal/models"
	"finagold/internal/repositories"
)

// Service is the ledger store contract. Writes are atomic per
// transaction group; reads page in append order.
type Service interface {
	// AppendEntries commits every draft in one atomic group. Balance
	// validation happens against committed state at commit time, under
	// per-wallet locks. Returns the committed entries with sequence
	// numbers, balance snapshots and event hashes populated.
	AppendEntries(ctx context.Context, transactionID string, drafts []EntryDraft) ([]models.LedgerEntry, error)

	// AppendEntriesFunc builds the group inside the commit transaction.
	// prepare may take plan-level locks and read state that must stay
	// consistent with the entries it returns; returning no drafts
	// commits nothing and is not an error.
	AppendEntriesFunc(ctx context.Context, transactionID string, prepare func(tx repositories.LedgerRepository) ([]EntryDraft, error)) ([]models.LedgerEntry, error)

	GetEntriesForWallet(ctx context.Context, userID uint, wallet string, cursor int64, limit int) (*WalletPage, error)
	GetEntriesForTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
	GetEntriesForUser(ctx context.Context, userID uint, limit, offset int) ([]models.LedgerEntry, int64, error)
	GetEntriesInRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.LedgerEntry, error)

	// VerifyWalletChain recomputes the wallet's hash chain from genesis
	// and reports the first break, if any.
	VerifyWalletChain(ctx context.Context, userID uint, wallet string) (*ChainReport, error)
}
