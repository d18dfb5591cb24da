package repositories

import (
	"context"
	"fmt"
	"time"

	"finagold/internal/models"

	"gorm.io/gorm"
)

// WorkflowRepository persists workflow instances and their append-only
// step records. Steps are never updated or deleted; they are the audit
// trail of record for every multi-leg operation.
type WorkflowRepository interface {
	CreateInstance(ctx context.Context, instance *models.WorkflowInstance) error
	GetInstance(ctx context.Context, flowInstanceID string) (*models.WorkflowInstance, error)
	CompleteInstance(ctx context.Context, flowInstanceID string, completedAt time.Time) error
	CountInFlight(ctx context.Context) (int64, error)

	CreateStep(ctx context.Context, step *models.WorkflowStep) error
	StepsForInstance(ctx context.Context, flowInstanceID string) ([]models.WorkflowStep, error)
	MaxStepOrder(ctx context.Context, flowInstanceID string) (int, error)

	ListInstances(ctx context.Context, flowType string, limit, offset int) ([]models.WorkflowInstance, int64, error)
}

type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository creates a GORM-backed workflow repository.
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) CreateInstance(ctx context.Context, instance *models.WorkflowInstance) error {
	if err := r.db.WithContext(ctx).Create(instance).Error; err != nil {
		return fmt.Errorf("failed to create workflow instance: %w", err)
	}
	return nil
}

func (r *workflowRepository) GetInstance(ctx context.Context, flowInstanceID string) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance
	err := r.db.WithContext(ctx).
		Where("flow_instance_id = ?", flowInstanceID).
		First(&instance).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow instance: %w", err)
	}
	return &instance, nil
}

func (r *workflowRepository) CompleteInstance(ctx context.Context, flowInstanceID string, completedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.WorkflowInstance{}).
		Where("flow_instance_id = ? AND completed_at IS NULL", flowInstanceID).
		Update("completed_at", completedAt)
	if result.Error != nil {
		return fmt.Errorf("failed to complete workflow instance: %w", result.Error)
	}
	return nil
}

func (r *workflowRepository) CountInFlight(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WorkflowInstance{}).
		Where("completed_at IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count in-flight instances: %w", err)
	}
	return count, nil
}

func (r *workflowRepository) CreateStep(ctx context.Context, step *models.WorkflowStep) error {
	if err := r.db.WithContext(ctx).Create(step).Error; err != nil {
		return fmt.Errorf("failed to create workflow step: %w", err)
	}
	return nil
}

func (r *workflowRepository) StepsForInstance(ctx context.Context, flowInstanceID string) ([]models.WorkflowStep, error) {
	var steps []models.WorkflowStep
	err := r.db.WithContext(ctx).
		Where("flow_instance_id = ?", flowInstanceID).
		Order("step_order ASC, id ASC").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow steps: %w", err)
	}
	return steps, nil
}

func (r *workflowRepository) MaxStepOrder(ctx context.Context, flowInstanceID string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&models.WorkflowStep{}).
		Where("flow_instance_id = ?", flowInstanceID).
		Select("COALESCE(MAX(step_order), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get max step order: %w", err)
	}
	return max, nil
}

func (r *workflowRepository) ListInstances(ctx context.Context, flowType string, limit, offset int) ([]models.WorkflowInstance, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.WorkflowInstance{})
	if flowType != "" {
		query = query.Where("flow_type = ?", flowType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count workflow instances: %w", err)
	}

	var instances []models.WorkflowInstance
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&instances).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list workflow instances: %w", err)
	}
	return instances, total, nil
}
