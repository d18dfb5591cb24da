package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finagold/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a GORM-backed ledger repository.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) ExecuteInTransaction(ctx context.Context, fn func(tx LedgerRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerRepository{db: tx})
	})
	return mapConcurrencyError(err)
}

// mapConcurrencyError translates Postgres concurrency aborts into the
// retryable ErrSerialization sentinel. Duplicate wallet_seq keys mean a
// concurrent writer won the race for the same chain position.
func mapConcurrencyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSerialization
	}
	msg := err.Error()
	if strings.Contains(msg, "40001") || strings.Contains(msg, "40P01") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "duplicate key") {
		return ErrSerialization
	}
	return err
}

func (r *ledgerRepository) LockWallet(ctx context.Context, userID uint, wallet string) error {
	// Advisory xact locks release automatically on commit or rollback.
	err := r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?::int, hashtext(?))", int32(userID), wallet).Error
	if err != nil {
		return fmt.Errorf("failed to lock wallet %d/%s: %w", userID, wallet, err)
	}
	return nil
}

func (r *ledgerRepository) LockPlan(ctx context.Context, planID uint) error {
	err := r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?::int, hashtext('bnsl_plan'))", int32(planID)).Error
	if err != nil {
		return fmt.Errorf("failed to lock plan %d: %w", planID, err)
	}
	return nil
}

func (r *ledgerRepository) WalletHead(ctx context.Context, userID uint, wallet string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND wallet = ?", userID, wallet).
		Order("wallet_seq DESC").
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet head: %w", err)
	}
	return &entry, nil
}

func (r *ledgerRepository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", mapConcurrencyError(err))
	}
	return nil
}

func (r *ledgerRepository) EntriesForWallet(ctx context.Context, userID uint, wallet string, afterSeq int64, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND wallet = ? AND wallet_seq > ?", userID, wallet, afterSeq).
		Order("wallet_seq ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet entries: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) EntriesForTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction entries: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) EntriesForUser(ctx context.Context, userID uint, limit, offset int) ([]models.LedgerEntry, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count user entries: %w", err)
	}

	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user entries: %w", err)
	}
	return entries, total, nil
}

func (r *ledgerRepository) EntriesInRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("created_at BETWEEN ? AND ?", from, to).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get entries in range: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) FoldWalletBalance(ctx context.Context, userID uint, wallet string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ? AND wallet = ?", userID, wallet).
		Select("COALESCE(SUM(gold_grams), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fold wallet balance: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) TotalDigitalGrams(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("wallet <> ?", models.WalletExternal).
		Select("COALESCE(SUM(gold_grams), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum digital gold: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) ListWalletHeads(ctx context.Context) ([]models.WalletHead, error) {
	var heads []models.WalletHead
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (user_id, wallet)
			user_id, wallet, wallet_seq, balance_after, event_hash
		FROM ledger_entries
		WHERE wallet <> ?
		ORDER BY user_id, wallet, wallet_seq DESC`, models.WalletExternal).
		Scan(&heads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet heads: %w", err)
	}
	return heads, nil
}

func (r *ledgerRepository) DisbursementExists(ctx context.Context, planID uint, quarterIndex int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("plan_id = ? AND quarter_index = ? AND action = ?", planID, quarterIndex, models.ActionPayoutCredit).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check disbursement: %w", err)
	}
	return count > 0, nil
}

func (r *ledgerRepository) SumPayoutValueUSD(ctx context.Context, planID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("plan_id = ? AND action = ?", planID, models.ActionPayoutCredit).
		Select("COALESCE(SUM(value_usd), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum plan payouts: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) CreatePlan(ctx context.Context, plan *models.BnslPlan) error {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetPlanForUpdate(ctx context.Context, planID uint) (*models.BnslPlan, error) {
	var plan models.BnslPlan
	err := r.db.WithContext(ctx).
		Raw("SELECT * FROM bnsl_plans WHERE id = ? FOR UPDATE", planID).
		Scan(&plan).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock plan row: %w", mapConcurrencyError(err))
	}
	if plan.ID == 0 {
		return nil, ErrPlanNotFound
	}
	return &plan, nil
}

func (r *ledgerRepository) SetPlanStatus(ctx context.Context, planID uint, status string, closedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.BnslPlan{}).
		Where("id = ?", planID).
		Updates(map[string]interface{}{"status": status, "closed_at": closedAt})
	if result.Error != nil {
		return fmt.Errorf("failed to set plan status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// ConservationViolations finds multi-wallet transaction groups that
// neither cross the External boundary nor sum to zero. A group is
// exempt when any of its entries references External as the owning,
// source, or destination wallet, matching the append-time rule.
func (r *ledgerRepository) ConservationViolations(ctx context.Context) ([]ConservationViolation, error) {
	var violations []ConservationViolation
	err := r.db.WithContext(ctx).Raw(`
		SELECT transaction_id, SUM(gold_grams) AS sum_grams, COUNT(*) AS entry_count
		FROM ledger_entries
		GROUP BY transaction_id
		HAVING COUNT(DISTINCT (user_id, wallet)) > 1
		   AND BOOL_AND(wallet <> ? AND from_wallet <> ? AND to_wallet <> ?)
		   AND SUM(gold_grams) <> 0`,
		models.WalletExternal, models.WalletExternal, models.WalletExternal).
		Scan(&violations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find conservation violations: %w", err)
	}
	return violations, nil
}

func (r *ledgerRepository) HeadMismatches(ctx context.Context) ([]HeadMismatch, error) {
	var mismatches []HeadMismatch
	err := r.db.WithContext(ctx).Raw(`
		SELECT h.user_id, h.wallet, s.total AS folded_grams, h.balance_after AS snapshot_grams
		FROM (
			SELECT DISTINCT ON (user_id, wallet) user_id, wallet, balance_after
			FROM ledger_entries
			WHERE wallet <> ?
			ORDER BY user_id, wallet, wallet_seq DESC
		) h
		JOIN (
			SELECT user_id, wallet, SUM(gold_grams) AS total
			FROM ledger_entries
			WHERE wallet <> ?
			GROUP BY user_id, wallet
		) s USING (user_id, wallet)
		WHERE s.total <> h.balance_after`,
		models.WalletExternal, models.WalletExternal).
		Scan(&mismatches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find head mismatches: %w", err)
	}
	return mismatches, nil
}
