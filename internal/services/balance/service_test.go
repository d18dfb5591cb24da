package balance

import (
	"context"
	"testing"
	"time"

	"finagold/internal/models"
	"finagold/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo answers only the projection queries the service uses.
type fakeRepo struct {
	repositories.LedgerRepository

	heads map[string]*models.LedgerEntry
	folds map[string]decimal.Decimal
	calls int
}

func key(userID uint, wallet string) string {
	return wallet + "/" + decimal.NewFromInt(int64(userID)).String()
}

func (f *fakeRepo) WalletHead(ctx context.Context, userID uint, wallet string) (*models.LedgerEntry, error) {
	f.calls++
	return f.heads[key(userID, wallet)], nil
}

func (f *fakeRepo) FoldWalletBalance(ctx context.Context, userID uint, wallet string) (decimal.Decimal, error) {
	return f.folds[key(userID, wallet)], nil
}

type memCache struct {
	values map[string]string
}

func (m *memCache) Get(ctx context.Context, k string) (string, error) {
	v, ok := m.values[k]
	if !ok {
		return "", repositories.ErrCacheMiss
	}
	return v, nil
}

func (m *memCache) Set(ctx context.Context, k, v string, ttl time.Duration) error {
	m.values[k] = v
	return nil
}

func (m *memCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestGetBalance(t *testing.T) {
	repo := &fakeRepo{
		heads: map[string]*models.LedgerEntry{
			key(1, models.WalletLGPW): {BalanceAfter: decimal.RequireFromString("12.5")},
		},
	}
	cache := &memCache{values: make(map[string]string)}
	svc := NewService(repo, cache, time.Minute)
	ctx := context.Background()

	got, err := svc.GetBalance(ctx, 1, models.WalletLGPW)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got))

	t.Run("second read is served from cache", func(t *testing.T) {
		calls := repo.calls
		got, err := svc.GetBalance(ctx, 1, models.WalletLGPW)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("12.5").Equal(got))
		assert.Equal(t, calls, repo.calls)
	})

	t.Run("cached value keeps exact decimal form", func(t *testing.T) {
		for _, v := range cache.values {
			assert.Equal(t, "12.5", v)
		}
	})

	t.Run("empty wallet projects to zero", func(t *testing.T) {
		got, err := svc.GetBalance(ctx, 2, models.WalletVault)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})
}

func TestFoldBalanceAgreesWithSnapshot(t *testing.T) {
	repo := &fakeRepo{
		heads: map[string]*models.LedgerEntry{
			key(1, models.WalletLGPW): {BalanceAfter: decimal.RequireFromString("7.25")},
		},
		folds: map[string]decimal.Decimal{
			key(1, models.WalletLGPW): decimal.RequireFromString("7.25"),
		},
	}
	svc := NewService(repo, &memCache{values: make(map[string]string)}, time.Minute)
	ctx := context.Background()

	snap, err := svc.GetBalance(ctx, 1, models.WalletLGPW)
	require.NoError(t, err)
	fold, err := svc.FoldBalance(ctx, 1, models.WalletLGPW)
	require.NoError(t, err)

	assert.True(t, snap.Equal(fold))
}

func TestGetAllBalances(t *testing.T) {
	repo := &fakeRepo{
		heads: map[string]*models.LedgerEntry{
			key(1, models.WalletLGPW): {BalanceAfter: decimal.RequireFromString("10")},
			key(1, models.WalletBNSL): {BalanceAfter: decimal.RequireFromString("100")},
		},
	}
	svc := NewService(repo, &memCache{values: make(map[string]string)}, time.Minute)

	balances, err := svc.GetAllBalances(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, balances, len(ProjectedWallets))

	assert.True(t, decimal.RequireFromString("10").Equal(balances[models.WalletLGPW]))
	assert.True(t, decimal.RequireFromString("100").Equal(balances[models.WalletBNSL]))
	assert.True(t, balances[models.WalletFGPW].IsZero())
	assert.True(t, balances[models.WalletVault].IsZero())
}
