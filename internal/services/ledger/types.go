package ledger

import (
	"time"

	"finagold/internal/models"

	"github.com/shopspring/decimal"
)

// EntryDraft is one leg of a transaction group as submitted by a caller.
// Sequence numbers, balance snapshots and event hashes are assigned by
// the store at commit time, never by callers.
type EntryDraft struct {
	UserID       uint
	Action       string
	Wallet       string
	FromWallet   string
	ToWallet     string
	GoldGrams    decimal.Decimal
	ValueUSD     decimal.Decimal
	GoldPriceUSD decimal.Decimal
	PlanID       *uint
	QuarterIndex *int
	Metadata     map[string]interface{}
}

// Config holds ledger store configuration
type Config struct {
	// PageLimit caps one page of wallet history.
	PageLimit int
	// CacheTTL bounds how long a projected balance may live in cache.
	CacheTTL time.Duration
}

// WalletPage is one cursor page of a wallet's history. NextCursor is the
// wallet sequence number to resume from; zero when the page is the last.
type WalletPage struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor int64                `json:"next_cursor"`
}

// ChainReport is the outcome of verifying one wallet's hash chain.
type ChainReport struct {
	UserID      uint   `json:"user_id"`
	Wallet      string `json:"wallet"`
	Entries     int    `json:"entries"`
	Intact      bool   `json:"intact"`
	BrokenAtSeq int64  `json:"broken_at_seq,omitempty"`
}

// MetricsCollector receives ledger operation metrics.
type MetricsCollector interface {
	RecordAppend(action string, legs int)
	RecordAppendDuration(d time.Duration)
	RecordError(operation, errType string)
}
