package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	apperr "finagold/internal/errors"
	"finagold/internal/models"
	"finagold/internal/repositories"

	"github.com/shopspring/decimal"
)

type service struct {
	repo    repositories.LedgerRepository
	cache   repositories.CacheRepository
	config  Config
	metrics MetricsCollector
}

// NewService creates a new ledger store service
func NewService(
	repo repositories.LedgerRepository,
	cache repositories.CacheRepository,
	config Config,
	metrics MetricsCollector,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		panic("cache is required")
	}

	if config.PageLimit == 0 {
		config.PageLimit = DefaultPageLimit
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}

	// Metrics is optional, create no-op collector if nil
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		repo:    repo,
		cache:   cache,
		config:  config,
		metrics: metrics,
	}
}

func (s *service) AppendEntries(ctx context.Context, transactionID string, drafts []EntryDraft) ([]models.LedgerEntry, error) {
	if len(drafts) == 0 {
		return nil, apperr.Wrap(apperr.ErrInvalidEntry, errors.New("empty transaction group"))
	}
	return s.AppendEntriesFunc(ctx, transactionID, func(repositories.LedgerRepository) ([]EntryDraft, error) {
		return drafts, nil
	})
}

func (s *service) AppendEntriesFunc(ctx context.Context, transactionID string, prepare func(tx repositories.LedgerRepository) ([]EntryDraft, error)) ([]models.LedgerEntry, error) {
	started := time.Now()

	if transactionID == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidEntry, errors.New("transaction id is required"))
	}

	var committed []models.LedgerEntry

	err := s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		// prepare may take plan-level locks and read state that must be
		// consistent with the entries it returns. Empty drafts mean the
		// operation found nothing to commit.
		drafts, err := prepare(tx)
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			return nil
		}

		for i := range drafts {
			if err := validateDraft(&drafts[i]); err != nil {
				return err
			}
		}
		if err := validateConservation(drafts); err != nil {
			return err
		}

		// Lock every touched wallet in a stable order so two groups
		// touching the same wallets cannot deadlock each other.
		for _, w := range lockOrder(drafts) {
			if err := tx.LockWallet(ctx, w.userID, w.wallet); err != nil {
				return err
			}
		}

		// Heads are read once under lock and advanced in memory so a
		// group may carry several legs against the same wallet.
		heads := make(map[walletKey]headState)

		// Truncated to the timestamptz resolution so the stored value
		// round-trips byte-identical into hash verification.
		now := time.Now().UTC().Truncate(time.Microsecond)
		for i := range drafts {
			d := &drafts[i]
			key := walletKey{d.UserID, d.Wallet}

			head, ok := heads[key]
			if !ok {
				latest, err := tx.WalletHead(ctx, d.UserID, d.Wallet)
				if err != nil {
					return err
				}
				if latest != nil {
					head = headState{seq: latest.WalletSeq, balance: latest.BalanceAfter, hash: latest.EventHash}
				}
			}

			balance := head.balance.Add(d.GoldGrams)
			// External is the counter-wallet for gold entering or
			// leaving the platform; it may legitimately run negative.
			if balance.IsNegative() && d.Wallet != models.WalletExternal {
				return apperr.ErrInsufficientBalance
			}

			entry := models.LedgerEntry{
				UserID:        d.UserID,
				Action:        d.Action,
				Wallet:        d.Wallet,
				FromWallet:    d.FromWallet,
				ToWallet:      d.ToWallet,
				GoldGrams:     d.GoldGrams,
				ValueUSD:      d.ValueUSD,
				GoldPriceUSD:  d.GoldPriceUSD,
				BalanceAfter:  balance,
				WalletSeq:     head.seq + 1,
				TransactionID: transactionID,
				PlanID:        d.PlanID,
				QuarterIndex:  d.QuarterIndex,
				Metadata:      models.NewJSON(d.Metadata),
				CreatedAt:     now,
			}
			entry.EventHash = eventHash(head.hash, &entry)

			if err := tx.CreateEntry(ctx, &entry); err != nil {
				return err
			}

			heads[key] = headState{seq: entry.WalletSeq, balance: balance, hash: entry.EventHash}
			committed = append(committed, entry)
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, repositories.ErrSerialization) {
			s.metrics.RecordError("append", "concurrent_modification")
			return nil, apperr.ErrConcurrentModification
		}
		var derr *apperr.DomainError
		if errors.As(err, &derr) {
			s.metrics.RecordError("append", derr.Code)
			return nil, derr
		}
		s.metrics.RecordError("append", "storage")
		return nil, fmt.Errorf("failed to append entries: %w", err)
	}

	if len(committed) > 0 {
		s.invalidateBalances(ctx, committed)
		s.metrics.RecordAppend(committed[0].Action, len(committed))
	}
	s.metrics.RecordAppendDuration(time.Since(started))

	return committed, nil
}

func (s *service) GetEntriesForWallet(ctx context.Context, userID uint, wallet string, cursor int64, limit int) (*WalletPage, error) {
	if !validWallets[wallet] {
		return nil, apperr.Wrap(apperr.ErrInvalidEntry, fmt.Errorf("unknown wallet %q", wallet))
	}
	if limit <= 0 || limit > s.config.PageLimit {
		limit = s.config.PageLimit
	}

	// Fetch one extra row to learn whether another page follows.
	entries, err := s.repo.EntriesForWallet(ctx, userID, wallet, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet history: %w", err)
	}

	page := &WalletPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.NextCursor = entries[limit-1].WalletSeq
	}
	return page, nil
}

func (s *service) GetEntriesForTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	return s.repo.EntriesForTransaction(ctx, transactionID)
}

func (s *service) GetEntriesForUser(ctx context.Context, userID uint, limit, offset int) ([]models.LedgerEntry, int64, error) {
	if limit <= 0 || limit > s.config.PageLimit {
		limit = s.config.PageLimit
	}
	return s.repo.EntriesForUser(ctx, userID, limit, offset)
}

func (s *service) GetEntriesInRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > s.config.PageLimit {
		limit = s.config.PageLimit
	}
	return s.repo.EntriesInRange(ctx, from, to, limit, offset)
}

func (s *service) VerifyWalletChain(ctx context.Context, userID uint, wallet string) (*ChainReport, error) {
	report := &ChainReport{UserID: userID, Wallet: wallet, Intact: true}

	var cursor int64
	prevHash := ""
	prevBalance := decimal.Zero

	for {
		entries, err := s.repo.EntriesForWallet(ctx, userID, wallet, cursor, s.config.PageLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to walk wallet chain: %w", err)
		}
		if len(entries) == 0 {
			return report, nil
		}

		for i := range entries {
			e := entries[i]
			report.Entries++

			expectedBalance := prevBalance.Add(e.GoldGrams)
			if e.EventHash != eventHash(prevHash, &e) || !e.BalanceAfter.Equal(expectedBalance) {
				report.Intact = false
				report.BrokenAtSeq = e.WalletSeq
				return report, nil
			}
			prevHash = e.EventHash
			prevBalance = e.BalanceAfter
			cursor = e.WalletSeq
		}
	}
}

// invalidateBalances drops cached projections for every wallet the group
// touched. Cache failures are logged by the projector on next read, not
// surfaced here; the committed ledger is already the source of truth.
func (s *service) invalidateBalances(ctx context.Context, entries []models.LedgerEntry) {
	seen := make(map[walletKey]bool)
	keys := make([]string, 0, len(entries))
	for i := range entries {
		k := walletKey{entries[i].UserID, entries[i].Wallet}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, fmt.Sprintf(BalanceCacheKey, k.userID, k.wallet))
		}
	}
	_ = s.cache.Delete(ctx, keys...)
}

type walletKey struct {
	userID uint
	wallet string
}

type headState struct {
	seq     int64
	balance decimal.Decimal
	hash    string
}

func lockOrder(drafts []EntryDraft) []walletKey {
	seen := make(map[walletKey]bool)
	var keys []walletKey
	for i := range drafts {
		k := walletKey{drafts[i].UserID, drafts[i].Wallet}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].userID != keys[j].userID {
			return keys[i].userID < keys[j].userID
		}
		return keys[i].wallet < keys[j].wallet
	})
	return keys
}

func validateDraft(d *EntryDraft) error {
	if d.UserID == 0 {
		return apperr.Wrap(apperr.ErrInvalidEntry, errors.New("user id is required"))
	}
	if !validActions[d.Action] {
		return apperr.Wrap(apperr.ErrInvalidEntry, fmt.Errorf("unknown action %q", d.Action))
	}
	if !validWallets[d.Wallet] {
		return apperr.Wrap(apperr.ErrInvalidEntry, fmt.Errorf("unknown wallet %q", d.Wallet))
	}
	if d.FromWallet != "" && !validWallets[d.FromWallet] {
		return apperr.Wrap(apperr.ErrInvalidEntry, fmt.Errorf("unknown from wallet %q", d.FromWallet))
	}
	if d.ToWallet != "" && !validWallets[d.ToWallet] {
		return apperr.Wrap(apperr.ErrInvalidEntry, fmt.Errorf("unknown to wallet %q", d.ToWallet))
	}
	if d.GoldGrams.IsZero() {
		return apperr.Wrap(apperr.ErrInvalidEntry, errors.New("zero-amount entry"))
	}
	if !d.GoldGrams.Equal(d.GoldGrams.Truncate(models.GramPrecision)) {
		return apperr.Wrap(apperr.ErrInvalidEntry,
			fmt.Errorf("gold amount %s exceeds %d decimal places", d.GoldGrams, models.GramPrecision))
	}
	if d.ValueUSD.IsNegative() || d.GoldPriceUSD.IsNegative() {
		return apperr.Wrap(apperr.ErrInvalidEntry, errors.New("negative usd amount"))
	}
	return nil
}

// validateConservation enforces the group invariant: a transaction that
// touches more than one internal wallet and never crosses the External
// boundary must conserve gold to the gram.
func validateConservation(drafts []EntryDraft) error {
	wallets := make(map[walletKey]bool)
	external := false
	sum := decimal.Zero

	for i := range drafts {
		d := &drafts[i]
		wallets[walletKey{d.UserID, d.Wallet}] = true
		if d.Wallet == models.WalletExternal ||
			d.FromWallet == models.WalletExternal ||
			d.ToWallet == models.WalletExternal {
			external = true
		}
		sum = sum.Add(d.GoldGrams)
	}

	if len(wallets) > 1 && !external && !sum.IsZero() {
		return apperr.Wrap(apperr.ErrInvalidEntry,
			fmt.Errorf("internal transaction group sums to %s grams, want 0", sum))
	}
	return nil
}
