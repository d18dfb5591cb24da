package repositories

import (
	"context"
	"fmt"

	"finagold/internal/models"

	"gorm.io/gorm"
)

// PlanRepository is the read side for BNSL plans. All writes, both creation
// at enrollment and terminal status transitions, happen through the ledger
// repository inside the same transaction as the plan's ledger entries, so a
// plan can never change state without its entries.
type PlanRepository interface {
	GetByID(ctx context.Context, id uint) (*models.BnslPlan, error)
	GetByUserID(ctx context.Context, userID uint) ([]models.BnslPlan, error)
	ListActive(ctx context.Context) ([]models.BnslPlan, error)
}

type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a GORM-backed plan repository.
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) GetByID(ctx context.Context, id uint) (*models.BnslPlan, error) {
	var plan models.BnslPlan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (r *planRepository) GetByUserID(ctx context.Context, userID uint) ([]models.BnslPlan, error) {
	var plans []models.BnslPlan
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user plans: %w", err)
	}
	return plans, nil
}

func (r *planRepository) ListActive(ctx context.Context) ([]models.BnslPlan, error) {
	var plans []models.BnslPlan
	err := r.db.WithContext(ctx).
		Where("status = ?", models.PlanStatusActive).
		Order("id ASC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active plans: %w", err)
	}
	return plans, nil
}
