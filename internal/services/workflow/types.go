package workflow

import (
	"sync"
	"time"

	"finagold/internal/models"
)

// ExpectedStep is one slot in a flow template. Required steps that are
// never recorded fail the flow's audit once it completes.
type ExpectedStep struct {
	StepKey  string `json:"step_key"`
	Order    int    `json:"order"`
	Required bool   `json:"required"`
}

// StepOptions carries the optional parts of a step record. A step with
// both Expected and Actual set asserts a predicted value (a balance, a
// gram quantity) against what the operation observed.
type StepOptions struct {
	Expected *string
	Actual   *string
	Skipped  bool
	Payload  map[string]interface{}
}

// AuditResult is the full expected-vs-actual comparison for one flow.
type AuditResult struct {
	FlowInstanceID string                `json:"flow_instance_id"`
	FlowType       string                `json:"flow_type"`
	OverallResult  string                `json:"overall_result"`
	Steps          []models.WorkflowStep `json:"steps"`
	MissingSteps   []string              `json:"missing_steps"`
	TotalSteps     int                   `json:"total_steps"`
	PassedSteps    int                   `json:"passed_steps"`
	FailedSteps    int                   `json:"failed_steps"`
	PendingSteps   int                   `json:"pending_steps"`
	SkippedSteps   int                   `json:"skipped_steps"`
}

// AuditSummary is the list-view projection of a flow's audit, consumed
// by the operations dashboard.
type AuditSummary struct {
	FlowInstanceID string     `json:"flow_instance_id"`
	FlowType       string     `json:"flow_type"`
	UserID         uint       `json:"user_id"`
	OverallResult  string     `json:"overall_result"`
	TotalSteps     int        `json:"total_steps"`
	PassedSteps    int        `json:"passed_steps"`
	FailedSteps    int        `json:"failed_steps"`
	PendingSteps   int        `json:"pending_steps"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Registry holds the expected-step template per flow type. Templates
// are registered at startup; new workflows declare theirs before any
// instance is started.
type Registry struct {
	mu        sync.RWMutex
	templates map[string][]ExpectedStep
}

// NewRegistry creates a registry preloaded with the platform's flows.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string][]ExpectedStep)}
	for flowType, steps := range defaultTemplates {
		r.Register(flowType, steps)
	}
	return r
}

// Register declares the ordered step template for a flow type.
func (r *Registry) Register(flowType string, steps []ExpectedStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[flowType] = steps
}

// Template returns the declared steps for a flow type.
func (r *Registry) Template(flowType string) ([]ExpectedStep, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	steps, ok := r.templates[flowType]
	return steps, ok
}

var defaultTemplates = map[string][]ExpectedStep{
	models.FlowDeposit: {
		{StepKey: "validate_payment", Order: 1, Required: true},
		{StepKey: "credit_wallet", Order: 2, Required: true},
		{StepKey: "notify", Order: 3, Required: true},
	},
	models.FlowWithdrawal: {
		{StepKey: "validate_balance", Order: 1, Required: true},
		{StepKey: "debit_wallet", Order: 2, Required: true},
		{StepKey: "settle_fiat", Order: 3, Required: true},
		{StepKey: "notify", Order: 4, Required: false},
	},
	models.FlowTransfer: {
		{StepKey: "debit_source", Order: 1, Required: true},
		{StepKey: "credit_destination", Order: 2, Required: true},
		{StepKey: "notify", Order: 3, Required: true},
	},
	models.FlowConversion: {
		{StepKey: "debit_source", Order: 1, Required: true},
		{StepKey: "credit_destination", Order: 2, Required: true},
	},
	models.FlowVaultTransfer: {
		{StepKey: "debit_source", Order: 1, Required: true},
		{StepKey: "credit_vault", Order: 2, Required: true},
		{StepKey: "custody_confirmation", Order: 3, Required: true},
	},
	models.FlowPlanEnrollment: {
		{StepKey: "validate_balance", Order: 1, Required: true},
		{StepKey: "create_plan", Order: 2, Required: true},
		{StepKey: "lock_gold", Order: 3, Required: true},
	},
	models.FlowPlanDisbursement: {
		{StepKey: "check_idempotency", Order: 1, Required: true},
		{StepKey: "capture_price", Order: 2, Required: true},
		{StepKey: "credit_payout", Order: 3, Required: true},
	},
	models.FlowPlanMaturity: {
		{StepKey: "check_eligibility", Order: 1, Required: true},
		{StepKey: "capture_price", Order: 2, Required: true},
		{StepKey: "release_locked_gold", Order: 3, Required: true},
		{StepKey: "credit_settlement", Order: 4, Required: true},
	},
	models.FlowPlanTermination: {
		{StepKey: "check_eligibility", Order: 1, Required: true},
		{StepKey: "capture_price", Order: 2, Required: true},
		{StepKey: "compute_quote", Order: 3, Required: true},
		{StepKey: "release_locked_gold", Order: 4, Required: true},
		{StepKey: "credit_settlement", Order: 5, Required: true},
	},
}
