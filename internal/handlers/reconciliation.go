package handlers

import (
	"errors"
	"strconv"

	apperr "finagold/internal/errors"
	"finagold/internal/services/reconciliation"
	"finagold/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type ReconciliationHandler struct {
	reconService reconciliation.Service
}

func NewReconciliationHandler(reconService reconciliation.Service) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconService: reconService,
	}
}

// Run executes a reconciliation sweep now. A mismatch still returns the
// report; the status code distinguishes it from a clean run.
func (h *ReconciliationHandler) Run(c *fiber.Ctx) error {
	report, err := h.reconService.Reconcile(c.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrReconciliationMismatch) && report != nil {
			return utils.Respond(c, fiber.StatusConflict, report)
		}
		return utils.DomainError(c, err)
	}
	return utils.Success(c, report)
}

func (h *ReconciliationHandler) Latest(c *fiber.Ctx) error {
	report, err := h.reconService.Latest(c.Context())
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Success(c, report)
}

func (h *ReconciliationHandler) History(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	reports, err := h.reconService.History(c.Context(), limit)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Success(c, fiber.Map{"reports": reports})
}
