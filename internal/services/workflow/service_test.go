package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"finagold/internal/models"
	"finagold/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorkflowRepo is an in-memory WorkflowRepository.
type fakeWorkflowRepo struct {
	mu        sync.Mutex
	instances map[string]*models.WorkflowInstance
	steps     map[string][]models.WorkflowStep
}

func newFakeWorkflowRepo() *fakeWorkflowRepo {
	return &fakeWorkflowRepo{
		instances: make(map[string]*models.WorkflowInstance),
		steps:     make(map[string][]models.WorkflowStep),
	}
}

func (f *fakeWorkflowRepo) CreateInstance(ctx context.Context, instance *models.WorkflowInstance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *instance
	f.instances[instance.FlowInstanceID] = &cp
	return nil
}

func (f *fakeWorkflowRepo) GetInstance(ctx context.Context, flowInstanceID string) (*models.WorkflowInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[flowInstanceID]
	if !ok {
		return nil, repositories.ErrInstanceNotFound
	}
	cp := *inst
	return &cp, nil
}

func (f *fakeWorkflowRepo) CompleteInstance(ctx context.Context, flowInstanceID string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inst, ok := f.instances[flowInstanceID]; ok && inst.CompletedAt == nil {
		inst.CompletedAt = &completedAt
	}
	return nil
}

func (f *fakeWorkflowRepo) CountInFlight(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, inst := range f.instances {
		if inst.CompletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeWorkflowRepo) CreateStep(ctx context.Context, step *models.WorkflowStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	step.ID = uint(len(f.steps[step.FlowInstanceID]) + 1)
	f.steps[step.FlowInstanceID] = append(f.steps[step.FlowInstanceID], *step)
	return nil
}

func (f *fakeWorkflowRepo) StepsForInstance(ctx context.Context, flowInstanceID string) ([]models.WorkflowStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.WorkflowStep(nil), f.steps[flowInstanceID]...), nil
}

func (f *fakeWorkflowRepo) MaxStepOrder(ctx context.Context, flowInstanceID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, s := range f.steps[flowInstanceID] {
		if s.StepOrder > max {
			max = s.StepOrder
		}
	}
	return max, nil
}

func (f *fakeWorkflowRepo) ListInstances(ctx context.Context, flowType string, limit, offset int) ([]models.WorkflowInstance, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WorkflowInstance
	for _, inst := range f.instances {
		if flowType == "" || inst.FlowType == flowType {
			out = append(out, *inst)
		}
	}
	return out, int64(len(out)), nil
}

func str(s string) *string { return &s }

func TestStartFlow(t *testing.T) {
	repo := newFakeWorkflowRepo()
	svc := NewService(repo, nil)

	flow, err := svc.StartFlow(context.Background(), models.FlowTransfer, 1, "tx-1")
	require.NoError(t, err)
	assert.NotEmpty(t, flow.FlowInstanceID)
	assert.Equal(t, models.FlowTransfer, flow.FlowType)

	t.Run("unknown flow type rejected", func(t *testing.T) {
		_, err := svc.StartFlow(context.Background(), "ARBITRAGE", 1, "tx-2")
		assert.Error(t, err)
	})
}

func TestRecordStep_Evaluation(t *testing.T) {
	tests := []struct {
		name       string
		opts       StepOptions
		wantResult string
	}{
		{"matching values pass", StepOptions{Expected: str("5"), Actual: str("5")}, models.StepPass},
		{"decimal forms compare numerically", StepOptions{Expected: str("5.0"), Actual: str("5")}, models.StepPass},
		{"mismatch fails", StepOptions{Expected: str("5"), Actual: str("4.999999")}, models.StepFail},
		{"no expectation passes on any actual", StepOptions{Actual: str("whatever")}, models.StepPass},
		{"missing actual is pending", StepOptions{Expected: str("5")}, models.StepPending},
		{"skipped", StepOptions{Skipped: true}, models.StepSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeWorkflowRepo()
			svc := NewService(repo, nil)
			flow, err := svc.StartFlow(context.Background(), models.FlowTransfer, 1, "tx-1")
			require.NoError(t, err)

			step, err := svc.RecordStep(context.Background(), flow.FlowInstanceID, "debit_source", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, step.Result)
			if tt.wantResult == models.StepFail {
				assert.NotEmpty(t, step.MismatchReason)
			}
		})
	}
}

func TestRecordStep_OrdersAreAppendOnly(t *testing.T) {
	repo := newFakeWorkflowRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	flow, err := svc.StartFlow(ctx, models.FlowTransfer, 1, "tx-1")
	require.NoError(t, err)

	for i, key := range []string{"debit_source", "credit_destination", "notify"} {
		step, err := svc.RecordStep(ctx, flow.FlowInstanceID, key, StepOptions{Actual: str("done")})
		require.NoError(t, err)
		assert.Equal(t, i+1, step.StepOrder)
	}

	t.Run("unknown instance rejected", func(t *testing.T) {
		_, err := svc.RecordStep(ctx, "no-such-flow", "debit_source", StepOptions{})
		assert.ErrorIs(t, err, repositories.ErrInstanceNotFound)
	})
}

func TestAuditFlow(t *testing.T) {
	ctx := context.Background()

	start := func(t *testing.T) (Service, string) {
		svc := NewService(newFakeWorkflowRepo(), nil)
		flow, err := svc.StartFlow(ctx, models.FlowTransfer, 1, "tx-1")
		require.NoError(t, err)
		return svc, flow.FlowInstanceID
	}

	record := func(t *testing.T, svc Service, id, key string) {
		_, err := svc.RecordStep(ctx, id, key, StepOptions{Actual: str("done")})
		require.NoError(t, err)
	}

	t.Run("all steps recorded passes", func(t *testing.T) {
		svc, id := start(t)
		record(t, svc, id, "debit_source")
		record(t, svc, id, "credit_destination")
		record(t, svc, id, "notify")
		require.NoError(t, svc.CompleteFlow(ctx, id))

		audit, err := svc.AuditFlow(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AuditPass, audit.OverallResult)
		assert.Equal(t, 3, audit.PassedSteps)
		assert.Empty(t, audit.MissingSteps)
	})

	t.Run("missing required step fails a completed flow", func(t *testing.T) {
		// Debit and credit happened but the notification never fired.
		svc, id := start(t)
		record(t, svc, id, "debit_source")
		record(t, svc, id, "credit_destination")
		require.NoError(t, svc.CompleteFlow(ctx, id))

		audit, err := svc.AuditFlow(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AuditFail, audit.OverallResult)
		assert.Equal(t, []string{"notify"}, audit.MissingSteps)
	})

	t.Run("missing step on an in-flight flow is pending", func(t *testing.T) {
		svc, id := start(t)
		record(t, svc, id, "debit_source")

		audit, err := svc.AuditFlow(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AuditPending, audit.OverallResult)
	})

	t.Run("any failed step fails the flow", func(t *testing.T) {
		svc, id := start(t)
		record(t, svc, id, "debit_source")
		_, err := svc.RecordStep(ctx, id, "credit_destination",
			StepOptions{Expected: str("10"), Actual: str("9.5")})
		require.NoError(t, err)
		record(t, svc, id, "notify")

		audit, err := svc.AuditFlow(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AuditFail, audit.OverallResult)
		assert.Equal(t, 1, audit.FailedSteps)
	})

	t.Run("skipped optional steps do not fail", func(t *testing.T) {
		svc := NewService(newFakeWorkflowRepo(), nil)
		flow, err := svc.StartFlow(ctx, models.FlowWithdrawal, 1, "tx-1")
		require.NoError(t, err)
		id := flow.FlowInstanceID

		record(t, svc, id, "validate_balance")
		record(t, svc, id, "debit_wallet")
		record(t, svc, id, "settle_fiat")
		_, err = svc.RecordStep(ctx, id, "notify", StepOptions{Skipped: true})
		require.NoError(t, err)
		require.NoError(t, svc.CompleteFlow(ctx, id))

		audit, err := svc.AuditFlow(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AuditPass, audit.OverallResult)
		assert.Equal(t, 1, audit.SkippedSteps)
	})
}

func TestListAudits(t *testing.T) {
	ctx := context.Background()
	repo := newFakeWorkflowRepo()
	svc := NewService(repo, nil)

	for _, flowType := range []string{models.FlowDeposit, models.FlowTransfer} {
		flow, err := svc.StartFlow(ctx, flowType, 1, "tx-"+flowType)
		require.NoError(t, err)
		_, err = svc.RecordStep(ctx, flow.FlowInstanceID, "anything", StepOptions{Actual: str("done")})
		require.NoError(t, err)
	}

	all, total, err := svc.ListAudits(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	deposits, total, err := svc.ListAudits(ctx, models.FlowDeposit, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, deposits, 1)
	assert.Equal(t, models.FlowDeposit, deposits[0].FlowType)
}
