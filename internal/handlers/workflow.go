package handlers

import (
	"finagold/internal/services/workflow"
	"finagold/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type WorkflowHandler struct {
	workflowService workflow.Service
}

func NewWorkflowHandler(workflowService workflow.Service) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
	}
}

// AuditFlow re-audits one flow instance and returns the verdict with
// every recorded step.
func (h *WorkflowHandler) AuditFlow(c *fiber.Ctx) error {
	flowInstanceID := c.Params("flowInstanceId")
	if flowInstanceID == "" {
		return utils.BadRequest(c, "flow instance id is required")
	}

	result, err := h.workflowService.AuditFlow(c.Context(), flowInstanceID)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Success(c, result)
}

func (h *WorkflowHandler) ListAudits(c *fiber.Ctx) error {
	flowType := c.Query("flow_type")
	p := utils.GetPagination(c, 1, 50)

	audits, total, err := h.workflowService.ListAudits(c.Context(), flowType, p.Limit, p.Offset)
	if err != nil {
		return utils.DomainError(c, err)
	}
	p.SetTotal(total)

	return utils.Success(c, utils.NewPaginatedResponse(audits, p))
}
