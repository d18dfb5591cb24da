// Package balance projects current wallet balances from the ledger.
// It never mutates history: a balance is either the snapshot on the
// wallet's latest entry or the fold of all its entries, and the two are
// guaranteed to agree.
package balance

import (
	"context"
	"fmt"
	"log"
	"time"

	"finagold/internal/models"
	"finagold/internal/repositories"
	"finagold/internal/services/ledger"

	"github.com/shopspring/decimal"
)

// ProjectedWallets are the wallet types a user balance summary covers.
var ProjectedWallets = []string{
	models.WalletLGPW,
	models.WalletFGPW,
	models.WalletVault,
	models.WalletBNSL,
}

// Service projects wallet balances from committed ledger entries.
type Service interface {
	// GetBalance returns the balance as of the latest committed entry.
	GetBalance(ctx context.Context, userID uint, wallet string) (decimal.Decimal, error)
	// FoldBalance recomputes the balance by summing every entry. It must
	// always agree with GetBalance; reconciliation flags any drift.
	FoldBalance(ctx context.Context, userID uint, wallet string) (decimal.Decimal, error)
	// GetAllBalances returns the user's balance per projected wallet.
	GetAllBalances(ctx context.Context, userID uint) (map[string]decimal.Decimal, error)
}

type service struct {
	repo     repositories.LedgerRepository
	cache    repositories.CacheRepository
	cacheTTL time.Duration
}

// NewService creates a new balance projector
func NewService(repo repositories.LedgerRepository, cache repositories.CacheRepository, cacheTTL time.Duration) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if cacheTTL == 0 {
		cacheTTL = ledger.DefaultCacheTTL
	}
	return &service{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

func (s *service) GetBalance(ctx context.Context, userID uint, wallet string) (decimal.Decimal, error) {
	key := fmt.Sprintf(ledger.BalanceCacheKey, userID, wallet)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		if d, err := decimal.NewFromString(cached); err == nil {
			return d, nil
		}
	}

	head, err := s.repo.WalletHead(ctx, userID, wallet)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to project balance: %w", err)
	}

	balance := decimal.Zero
	if head != nil {
		balance = head.BalanceAfter
	}

	if err := s.cache.Set(ctx, key, balance.String(), s.cacheTTL); err != nil {
		log.Printf("failed to cache balance %s: %v", key, err)
	}
	return balance, nil
}

func (s *service) FoldBalance(ctx context.Context, userID uint, wallet string) (decimal.Decimal, error) {
	return s.repo.FoldWalletBalance(ctx, userID, wallet)
}

func (s *service) GetAllBalances(ctx context.Context, userID uint) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(ProjectedWallets))
	for _, wallet := range ProjectedWallets {
		b, err := s.GetBalance(ctx, userID, wallet)
		if err != nil {
			return nil, err
		}
		balances[wallet] = b
	}
	return balances, nil
}
