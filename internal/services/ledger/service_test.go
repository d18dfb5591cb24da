package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	apperr "finagold/internal/errors"
	"finagold/internal/models"
	"finagold/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedgerRepo is an in-memory LedgerRepository. Transactions are
// simulated by staging writes and discarding them when fn errors.
type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
	plans   map[uint]*models.BnslPlan
	nextID  uint
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{plans: make(map[uint]*models.BnslPlan), nextID: 1}
}

func (f *fakeLedgerRepo) ExecuteInTransaction(ctx context.Context, fn func(tx repositories.LedgerRepository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	checkpoint := len(f.entries)
	if err := fn(f); err != nil {
		f.entries = f.entries[:checkpoint]
		return err
	}
	return nil
}

func (f *fakeLedgerRepo) LockWallet(ctx context.Context, userID uint, wallet string) error {
	return nil
}

func (f *fakeLedgerRepo) LockPlan(ctx context.Context, planID uint) error { return nil }

func (f *fakeLedgerRepo) WalletHead(ctx context.Context, userID uint, wallet string) (*models.LedgerEntry, error) {
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].UserID == userID && f.entries[i].Wallet == wallet {
			e := f.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeLedgerRepo) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	entry.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedgerRepo) EntriesForWallet(ctx context.Context, userID uint, wallet string, afterSeq int64, limit int) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.UserID == userID && e.Wallet == wallet && e.WalletSeq > afterSeq {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) EntriesForTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) EntriesForUser(ctx context.Context, userID uint, limit, offset int) ([]models.LedgerEntry, int64, error) {
	var all []models.LedgerEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			all = append(all, e)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeLedgerRepo) EntriesInRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) FoldWalletBalance(ctx context.Context, userID uint, wallet string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range f.entries {
		if e.UserID == userID && e.Wallet == wallet {
			sum = sum.Add(e.GoldGrams)
		}
	}
	return sum, nil
}

func (f *fakeLedgerRepo) TotalDigitalGrams(ctx context.Context) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range f.entries {
		if e.Wallet != models.WalletExternal {
			sum = sum.Add(e.GoldGrams)
		}
	}
	return sum, nil
}

func (f *fakeLedgerRepo) ListWalletHeads(ctx context.Context) ([]models.WalletHead, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) DisbursementExists(ctx context.Context, planID uint, quarterIndex int) (bool, error) {
	for _, e := range f.entries {
		if e.Action == models.ActionPayoutCredit && e.PlanID != nil && *e.PlanID == planID &&
			e.QuarterIndex != nil && *e.QuarterIndex == quarterIndex {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerRepo) SumPayoutValueUSD(ctx context.Context, planID uint) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range f.entries {
		if e.Action == models.ActionPayoutCredit && e.PlanID != nil && *e.PlanID == planID {
			sum = sum.Add(e.ValueUSD)
		}
	}
	return sum, nil
}

func (f *fakeLedgerRepo) CreatePlan(ctx context.Context, plan *models.BnslPlan) error {
	plan.ID = f.nextID
	f.nextID++
	cp := *plan
	f.plans[plan.ID] = &cp
	return nil
}

func (f *fakeLedgerRepo) GetPlanForUpdate(ctx context.Context, planID uint) (*models.BnslPlan, error) {
	p, ok := f.plans[planID]
	if !ok {
		return nil, repositories.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeLedgerRepo) SetPlanStatus(ctx context.Context, planID uint, status string, closedAt time.Time) error {
	p, ok := f.plans[planID]
	if !ok {
		return repositories.ErrPlanNotFound
	}
	p.Status = status
	p.ClosedAt = &closedAt
	return nil
}

func (f *fakeLedgerRepo) ConservationViolations(ctx context.Context) ([]repositories.ConservationViolation, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) HeadMismatches(ctx context.Context) ([]repositories.HeadMismatch, error) {
	return nil, nil
}

// fakeCache is an in-memory CacheRepository.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", repositories.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func grams(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func depositDraft(userID uint, amount string) EntryDraft {
	return EntryDraft{
		UserID:       userID,
		Action:       models.ActionDeposit,
		Wallet:       models.WalletLGPW,
		FromWallet:   models.WalletExternal,
		ToWallet:     models.WalletLGPW,
		GoldGrams:    grams(amount),
		ValueUSD:     grams(amount).Mul(grams("1000")),
		GoldPriceUSD: grams("1000"),
	}
}

func newTestService(repo *fakeLedgerRepo) Service {
	return NewService(repo, newFakeCache(), Config{}, nil)
}

func TestAppendEntries_Deposit(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)

	entries, err := svc.AppendEntries(context.Background(), "tx-1", []EntryDraft{depositDraft(1, "10")})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, int64(1), e.WalletSeq)
	assert.True(t, grams("10").Equal(e.BalanceAfter))
	assert.NotEmpty(t, e.EventHash)
	assert.Equal(t, "tx-1", e.TransactionID)
}

func TestAppendEntries_SequencesAndBalancesAdvance(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AppendEntries(ctx, "tx-1", []EntryDraft{depositDraft(1, "10")})
	require.NoError(t, err)

	entries, err := svc.AppendEntries(ctx, "tx-2", []EntryDraft{depositDraft(1, "2.5")})
	require.NoError(t, err)

	assert.Equal(t, int64(2), entries[0].WalletSeq)
	assert.True(t, grams("12.5").Equal(entries[0].BalanceAfter))
}

func TestAppendEntries_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EntryDraft)
	}{
		{"zero amount", func(d *EntryDraft) { d.GoldGrams = decimal.Zero }},
		{"too many decimal places", func(d *EntryDraft) { d.GoldGrams = grams("1.0000001") }},
		{"unknown wallet", func(d *EntryDraft) { d.Wallet = "Offshore" }},
		{"unknown action", func(d *EntryDraft) { d.Action = "MINT" }},
		{"missing user", func(d *EntryDraft) { d.UserID = 0 }},
		{"negative usd", func(d *EntryDraft) { d.ValueUSD = grams("-1") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeLedgerRepo()
			svc := newTestService(repo)

			draft := depositDraft(1, "1")
			tt.mutate(&draft)

			_, err := svc.AppendEntries(context.Background(), "tx-1", []EntryDraft{draft})
			assert.ErrorIs(t, err, apperr.ErrInvalidEntry)
			assert.Empty(t, repo.entries)
		})
	}
}

func TestAppendEntries_OverdraftRejected(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AppendEntries(ctx, "tx-1", []EntryDraft{depositDraft(1, "5")})
	require.NoError(t, err)

	_, err = svc.AppendEntries(ctx, "tx-2", []EntryDraft{{
		UserID:     1,
		Action:     models.ActionWithdrawal,
		Wallet:     models.WalletLGPW,
		FromWallet: models.WalletLGPW,
		ToWallet:   models.WalletExternal,
		GoldGrams:  grams("-5.000001"),
		ValueUSD:   grams("5000.001"),
	}})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	// The failed group left no trace.
	balance, err := repo.FoldWalletBalance(ctx, 1, models.WalletLGPW)
	require.NoError(t, err)
	assert.True(t, grams("5").Equal(balance))
}

// Two concurrent 6g withdrawals against a 10g wallet: exactly one
// commits, the other fails the balance re-check against committed
// state, and the wallet ends at 4g.
func TestAppendEntries_ConcurrentWithdrawalsOneWins(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AppendEntries(ctx, "tx-fund", []EntryDraft{depositDraft(1, "10")})
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, txID := range []string{"tx-a", "tx-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.AppendEntries(ctx, id, []EntryDraft{{
				UserID:     1,
				Action:     models.ActionWithdrawal,
				Wallet:     models.WalletLGPW,
				FromWallet: models.WalletLGPW,
				ToWallet:   models.WalletExternal,
				GoldGrams:  grams("-6"),
				ValueUSD:   grams("6000"),
			}})
			errs <- err
		}(txID)
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, apperr.ErrInsufficientBalance)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	balance, err := repo.FoldWalletBalance(ctx, 1, models.WalletLGPW)
	require.NoError(t, err)
	assert.True(t, grams("4").Equal(balance))
}

func TestAppendEntries_ExternalMayRunNegative(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)

	_, err := svc.AppendEntries(context.Background(), "tx-1", []EntryDraft{{
		UserID:     1,
		Action:     models.ActionPayoutCredit,
		Wallet:     models.WalletExternal,
		FromWallet: models.WalletExternal,
		ToWallet:   models.WalletLGPW,
		GoldGrams:  grams("-3"),
		ValueUSD:   grams("3000"),
	}})
	assert.NoError(t, err)
}

func TestAppendEntries_ConservationEnforced(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AppendEntries(ctx, "tx-1", []EntryDraft{depositDraft(1, "10")})
	require.NoError(t, err)

	// Internal conversion legs that do not sum to zero must be rejected.
	_, err = svc.AppendEntries(ctx, "tx-2", []EntryDraft{
		{
			UserID: 1, Action: models.ActionLGPWToFGPW,
			Wallet: models.WalletLGPW, FromWallet: models.WalletLGPW, ToWallet: models.WalletFGPW,
			GoldGrams: grams("-4"), ValueUSD: grams("4000"),
		},
		{
			UserID: 1, Action: models.ActionLGPWToFGPW,
			Wallet: models.WalletFGPW, FromWallet: models.WalletLGPW, ToWallet: models.WalletFGPW,
			GoldGrams: grams("3.999999"), ValueUSD: grams("4000"),
		},
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidEntry)

	// The balanced version commits.
	_, err = svc.AppendEntries(ctx, "tx-3", []EntryDraft{
		{
			UserID: 1, Action: models.ActionLGPWToFGPW,
			Wallet: models.WalletLGPW, FromWallet: models.WalletLGPW, ToWallet: models.WalletFGPW,
			GoldGrams: grams("-4"), ValueUSD: grams("4000"),
		},
		{
			UserID: 1, Action: models.ActionLGPWToFGPW,
			Wallet: models.WalletFGPW, FromWallet: models.WalletLGPW, ToWallet: models.WalletFGPW,
			GoldGrams: grams("4"), ValueUSD: grams("4000"),
		},
	})
	assert.NoError(t, err)
}

func TestAppendEntries_GroupIsAtomic(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AppendEntries(ctx, "tx-1", []EntryDraft{depositDraft(1, "2")})
	require.NoError(t, err)

	// Second leg overdraws, so the first leg must roll back too.
	_, err = svc.AppendEntries(ctx, "tx-2", []EntryDraft{
		{
			UserID: 2, Action: models.ActionTransferReceive,
			Wallet: models.WalletLGPW, FromWallet: models.WalletLGPW, ToWallet: models.WalletLGPW,
			GoldGrams: grams("3"), ValueUSD: grams("3000"),
		},
		{
			UserID: 1, Action: models.ActionTransferSend,
			Wallet: models.WalletLGPW, FromWallet: models.WalletLGPW, ToWallet: models.WalletLGPW,
			GoldGrams: grams("-3"), ValueUSD: grams("3000"),
		},
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	receiver, err := repo.FoldWalletBalance(ctx, 2, models.WalletLGPW)
	require.NoError(t, err)
	assert.True(t, receiver.IsZero())
}

func TestAppendEntriesFunc_EmptyDraftsCommitNothing(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)

	entries, err := svc.AppendEntriesFunc(context.Background(), "tx-1",
		func(tx repositories.LedgerRepository) ([]EntryDraft, error) {
			return nil, nil
		})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, repo.entries)
}

func TestVerifyWalletChain(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	for i, amount := range []string{"10", "2.5", "-3"} {
		action := models.ActionDeposit
		if amount[0] == '-' {
			action = models.ActionWithdrawal
		}
		_, err := svc.AppendEntries(ctx, "tx-"+string(rune('a'+i)), []EntryDraft{{
			UserID: 1, Action: action,
			Wallet: models.WalletLGPW, FromWallet: models.WalletExternal, ToWallet: models.WalletLGPW,
			GoldGrams: grams(amount), ValueUSD: grams("1"),
		}})
		require.NoError(t, err)
	}

	report, err := svc.VerifyWalletChain(ctx, 1, models.WalletLGPW)
	require.NoError(t, err)
	assert.True(t, report.Intact)
	assert.Equal(t, 3, report.Entries)

	t.Run("detects tampering", func(t *testing.T) {
		repo.entries[1].GoldGrams = grams("2.6")

		report, err := svc.VerifyWalletChain(ctx, 1, models.WalletLGPW)
		require.NoError(t, err)
		assert.False(t, report.Intact)
		assert.Equal(t, int64(2), report.BrokenAtSeq)
	})
}

// The hash must be stable across a database round-trip: numeric(20,6)
// scans back at full scale ("10.000000" for "10") and timestamptz keeps
// microseconds, not nanoseconds. Verification runs over re-scanned
// entries, so an untampered chain must still verify after both.
func TestVerifyWalletChain_SurvivesStorageRoundTrip(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AppendEntries(ctx, "tx-1", []EntryDraft{depositDraft(1, "10")})
	require.NoError(t, err)
	_, err = svc.AppendEntries(ctx, "tx-2", []EntryDraft{depositDraft(1, "2.5")})
	require.NoError(t, err)

	rescan := func(d decimal.Decimal) decimal.Decimal {
		return decimal.RequireFromString(d.StringFixed(models.GramPrecision))
	}
	for i := range repo.entries {
		e := &repo.entries[i]
		e.GoldGrams = rescan(e.GoldGrams)
		e.ValueUSD = rescan(e.ValueUSD)
		e.GoldPriceUSD = rescan(e.GoldPriceUSD)
		e.BalanceAfter = rescan(e.BalanceAfter)
		e.CreatedAt = e.CreatedAt.Truncate(time.Microsecond)
	}

	report, err := svc.VerifyWalletChain(ctx, 1, models.WalletLGPW)
	require.NoError(t, err)
	assert.True(t, report.Intact, "broken at seq %d", report.BrokenAtSeq)
	assert.Equal(t, 2, report.Entries)
}

func TestGetEntriesForWallet_CursorPagination(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := NewService(repo, newFakeCache(), Config{PageLimit: 2}, nil)
	ctx := context.Background()

	for _, tx := range []string{"tx-1", "tx-2", "tx-3", "tx-4", "tx-5"} {
		_, err := svc.AppendEntries(ctx, tx, []EntryDraft{depositDraft(1, "1")})
		require.NoError(t, err)
	}

	var seen []int64
	var cursor int64
	for {
		page, err := svc.GetEntriesForWallet(ctx, 1, models.WalletLGPW, cursor, 2)
		require.NoError(t, err)
		for _, e := range page.Entries {
			seen = append(seen, e.WalletSeq)
		}
		if page.NextCursor == 0 {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

// Random walk of deposits and withdrawals: the head snapshot must always
// equal the fold over entries, and the balance must never go negative.
func TestSnapshotEqualsFold_RandomWalk(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		amount := decimal.NewFromInt(int64(rng.Intn(5_000_000) + 1)).Shift(-6)
		txID := fmt.Sprintf("tx-%d", i)

		var err error
		if rng.Intn(2) == 0 {
			_, err = svc.AppendEntries(ctx, txID, []EntryDraft{depositDraft(1, amount.String())})
		} else {
			_, err = svc.AppendEntries(ctx, txID, []EntryDraft{{
				UserID:     1,
				Action:     models.ActionWithdrawal,
				Wallet:     models.WalletLGPW,
				FromWallet: models.WalletLGPW,
				ToWallet:   models.WalletExternal,
				GoldGrams:  amount.Neg(),
				ValueUSD:   amount.Mul(grams("1000")),
			}})
			if err != nil {
				require.ErrorIs(t, err, apperr.ErrInsufficientBalance)
				continue
			}
		}
		require.NoError(t, err)
	}

	head, err := repo.WalletHead(ctx, 1, models.WalletLGPW)
	require.NoError(t, err)
	require.NotNil(t, head)
	fold, err := repo.FoldWalletBalance(ctx, 1, models.WalletLGPW)
	require.NoError(t, err)

	assert.True(t, head.BalanceAfter.Equal(fold), "head %s fold %s", head.BalanceAfter, fold)
	assert.False(t, fold.IsNegative())
}
