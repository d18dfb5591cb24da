// Package workflow records the execution checkpoints of multi-step
// financial operations and audits them against declared templates. It is
// the safety net that catches a half-executed transfer before it
// silently corrupts balances.
package workflow

import (
	"fmt"
	"log"
	"time"

	"context"

	apperr "finagold/internal/errors"
	"finagold/internal/models"
	"finagold/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service records steps and audits flows. Recording never blocks the
// underlying financial transaction: a failed audit is an operational
// alert, not a rollback.
type Service interface {
	StartFlow(ctx context.Context, flowType string, userID uint, transactionID string) (*models.WorkflowInstance, error)
	RecordStep(ctx context.Context, flowInstanceID, stepKey string, opts StepOptions) (*models.WorkflowStep, error)
	CompleteFlow(ctx context.Context, flowInstanceID string) error
	AuditFlow(ctx context.Context, flowInstanceID string) (*AuditResult, error)
	ListAudits(ctx context.Context, flowType string, limit, offset int) ([]AuditSummary, int64, error)
}

type service struct {
	repo     repositories.WorkflowRepository
	registry *Registry
}

// NewService creates a new workflow recorder
func NewService(repo repositories.WorkflowRepository, registry *Registry) Service {
	if repo == nil {
		panic("repo is required")
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &service{repo: repo, registry: registry}
}

func (s *service) StartFlow(ctx context.Context, flowType string, userID uint, transactionID string) (*models.WorkflowInstance, error) {
	if _, ok := s.registry.Template(flowType); !ok {
		return nil, fmt.Errorf("no template registered for flow type %q", flowType)
	}

	instance := &models.WorkflowInstance{
		FlowInstanceID: uuid.NewString(),
		FlowType:       flowType,
		UserID:         userID,
		TransactionID:  transactionID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.CreateInstance(ctx, instance); err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *service) RecordStep(ctx context.Context, flowInstanceID, stepKey string, opts StepOptions) (*models.WorkflowStep, error) {
	if _, err := s.repo.GetInstance(ctx, flowInstanceID); err != nil {
		return nil, err
	}

	maxOrder, err := s.repo.MaxStepOrder(ctx, flowInstanceID)
	if err != nil {
		return nil, err
	}

	step := &models.WorkflowStep{
		FlowInstanceID: flowInstanceID,
		StepKey:        stepKey,
		StepOrder:      maxOrder + 1,
		Expected:       opts.Expected,
		Actual:         opts.Actual,
		Payload:        models.NewJSON(opts.Payload),
		RecordedAt:     time.Now().UTC(),
	}
	step.Result, step.MismatchReason = evaluate(opts)

	if err := s.repo.CreateStep(ctx, step); err != nil {
		return nil, err
	}

	if step.Result == models.StepFail {
		log.Printf("workflow audit: step %s of flow %s failed: %s",
			stepKey, flowInstanceID, step.MismatchReason)
	}
	return step, nil
}

// evaluate computes a step's verdict. Both values present compare for
// equality (decimal values compare numerically, so "5.0" matches "5");
// a missing actual is pending until a later step or external
// confirmation supplies it.
func evaluate(opts StepOptions) (result, reason string) {
	if opts.Skipped {
		return models.StepSkipped, ""
	}
	if opts.Actual == nil {
		return models.StepPending, ""
	}
	if opts.Expected == nil {
		return models.StepPass, ""
	}
	if valuesEqual(*opts.Expected, *opts.Actual) {
		return models.StepPass, ""
	}
	return models.StepFail, fmt.Sprintf("expected %q, got %q", *opts.Expected, *opts.Actual)
}

func valuesEqual(expected, actual string) bool {
	if expected == actual {
		return true
	}
	de, errE := decimal.NewFromString(expected)
	da, errA := decimal.NewFromString(actual)
	return errE == nil && errA == nil && de.Equal(da)
}

func (s *service) CompleteFlow(ctx context.Context, flowInstanceID string) error {
	if err := s.repo.CompleteInstance(ctx, flowInstanceID, time.Now().UTC()); err != nil {
		return err
	}

	// Completing a flow triggers its audit; a failure here is an
	// operational alert, never a rollback of the posted transaction.
	audit, err := s.AuditFlow(ctx, flowInstanceID)
	if err != nil {
		return err
	}
	if audit.OverallResult == models.AuditFail {
		log.Printf("workflow audit: flow %s (%s) failed: missing=%v failed_steps=%d: %v",
			flowInstanceID, audit.FlowType, audit.MissingSteps, audit.FailedSteps,
			apperr.ErrMissingRequiredStep)
	}
	return nil
}

func (s *service) AuditFlow(ctx context.Context, flowInstanceID string) (*AuditResult, error) {
	instance, err := s.repo.GetInstance(ctx, flowInstanceID)
	if err != nil {
		return nil, err
	}
	steps, err := s.repo.StepsForInstance(ctx, flowInstanceID)
	if err != nil {
		return nil, err
	}

	result := &AuditResult{
		FlowInstanceID: flowInstanceID,
		FlowType:       instance.FlowType,
		Steps:          steps,
		TotalSteps:     len(steps),
	}

	recorded := make(map[string]bool, len(steps))
	for i := range steps {
		recorded[steps[i].StepKey] = true
		switch steps[i].Result {
		case models.StepPass:
			result.PassedSteps++
		case models.StepFail:
			result.FailedSteps++
		case models.StepPending:
			result.PendingSteps++
		case models.StepSkipped:
			result.SkippedSteps++
		}
	}

	template, _ := s.registry.Template(instance.FlowType)
	for _, expected := range template {
		if expected.Required && !recorded[expected.StepKey] {
			result.MissingSteps = append(result.MissingSteps, expected.StepKey)
		}
	}

	// A flow with failures is failed outright. Missing required steps
	// fail a completed flow; while the flow is still in flight they
	// only hold the verdict at pending.
	switch {
	case result.FailedSteps > 0:
		result.OverallResult = models.AuditFail
	case len(result.MissingSteps) > 0 && instance.CompletedAt != nil:
		result.OverallResult = models.AuditFail
	case len(result.MissingSteps) > 0 || result.PendingSteps > 0:
		result.OverallResult = models.AuditPending
	default:
		result.OverallResult = models.AuditPass
	}
	return result, nil
}

func (s *service) ListAudits(ctx context.Context, flowType string, limit, offset int) ([]AuditSummary, int64, error) {
	instances, total, err := s.repo.ListInstances(ctx, flowType, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]AuditSummary, 0, len(instances))
	for i := range instances {
		audit, err := s.AuditFlow(ctx, instances[i].FlowInstanceID)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, AuditSummary{
			FlowInstanceID: instances[i].FlowInstanceID,
			FlowType:       instances[i].FlowType,
			UserID:         instances[i].UserID,
			OverallResult:  audit.OverallResult,
			TotalSteps:     audit.TotalSteps,
			PassedSteps:    audit.PassedSteps,
			FailedSteps:    audit.FailedSteps,
			PendingSteps:   audit.PendingSteps,
			CreatedAt:      instances[i].CreatedAt,
			CompletedAt:    instances[i].CompletedAt,
		})
	}
	return summaries, total, nil
}
