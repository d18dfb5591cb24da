package models

import "time"

// Flow types
const (
	FlowDeposit         = "DEPOSIT"
	FlowWithdrawal      = "WITHDRAWAL"
	FlowTransfer        = "TRANSFER"
	FlowConversion      = "CONVERSION"
	FlowVaultTransfer   = "VAULT_TRANSFER"
	FlowPlanEnrollment  = "PLAN_ENROLLMENT"
	FlowPlanDisbursement = "PLAN_DISBURSEMENT"
	FlowPlanMaturity    = "PLAN_MATURITY"
	FlowPlanTermination = "PLAN_TERMINATION"
)

// Step results
const (
	StepPass    = "pass"
	StepFail    = "fail"
	StepPending = "pending"
	StepSkipped = "skipped"
)

// Overall audit verdicts
const (
	AuditPass    = "pass"
	AuditFail    = "fail"
	AuditPending = "pending"
)

// WorkflowInstance is one logical multi-step financial operation. Every
// deposit, transfer, conversion or plan settlement opens an instance and
// records its execution checkpoints against a declared template.
type WorkflowInstance struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	FlowInstanceID string     `gorm:"uniqueIndex;not null" json:"flow_instance_id"`
	FlowType       string     `gorm:"index;not null" json:"flow_type"`
	UserID         uint       `gorm:"index;not null" json:"user_id"`
	TransactionID  string     `gorm:"index" json:"transaction_id,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// WorkflowStep is one recorded checkpoint within an instance. Steps are
// append-only and StepOrder is monotonically non-decreasing per instance.
type WorkflowStep struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	FlowInstanceID string    `gorm:"index:idx_step_flow,priority:1;not null" json:"flow_instance_id"`
	StepKey        string    `gorm:"not null" json:"step_key"`
	StepOrder      int       `gorm:"index:idx_step_flow,priority:2;not null" json:"step_order"`
	Expected       *string   `json:"expected,omitempty"`
	Actual         *string   `json:"actual,omitempty"`
	Result         string    `gorm:"not null" json:"result"`
	MismatchReason string    `json:"mismatch_reason,omitempty"`
	Payload        JSON      `gorm:"type:jsonb" json:"payload,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}
