package repositories

import (
	"context"
	"fmt"

	"finagold/internal/models"

	"gorm.io/gorm"
)

// ReconciliationRepository stores sweep outcomes so a mismatch remains a
// standing, queryable operational alert until a later sweep clears it.
type ReconciliationRepository interface {
	Create(ctx context.Context, report *models.ReconciliationReport) error
	Latest(ctx context.Context) (*models.ReconciliationReport, error)
	List(ctx context.Context, limit, offset int) ([]models.ReconciliationReport, error)
}

type reconciliationRepository struct {
	db *gorm.DB
}

// NewReconciliationRepository creates a GORM-backed report repository.
func NewReconciliationRepository(db *gorm.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

func (r *reconciliationRepository) Create(ctx context.Context, report *models.ReconciliationReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create reconciliation report: %w", err)
	}
	return nil
}

func (r *reconciliationRepository) Latest(ctx context.Context) (*models.ReconciliationReport, error) {
	var report models.ReconciliationReport
	err := r.db.WithContext(ctx).
		Order("checked_at DESC").
		First(&report).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	return &report, nil
}

func (r *reconciliationRepository) List(ctx context.Context, limit, offset int) ([]models.ReconciliationReport, error) {
	var reports []models.ReconciliationReport
	err := r.db.WithContext(ctx).
		Order("checked_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}
