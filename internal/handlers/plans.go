package handlers

import (
	"strconv"
	"time"

	"finagold/internal/services/settlement"
	"finagold/internal/utils"
	"finagold/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type PlanHandler struct {
	settlementService settlement.Service
}

func NewPlanHandler(settlementService settlement.Service) *PlanHandler {
	return &PlanHandler{
		settlementService: settlementService,
	}
}

func parsePlanID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("planId"), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.ErrBadRequest
	}
	return uint(id), nil
}

func (h *PlanHandler) Enroll(c *fiber.Ctx) error {
	var req settlement.EnrollmentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	v := validation.New()
	v.GoldAmount("gold_sold_grams", req.GoldSoldGrams)
	v.Tenor("tenor_months", req.TenorMonths)
	v.PositiveDecimal("margin_annual_pct", req.MarginAnnualPct)
	if !v.Valid() {
		return utils.Respond(c, fiber.StatusBadRequest, fiber.Map{"errors": v.Errors})
	}

	plan, err := h.settlementService.Enroll(c.Context(), req)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Created(c, plan)
}

func (h *PlanHandler) GetPlan(c *fiber.Ctx) error {
	planID, err := parsePlanID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid plan id")
	}

	plan, err := h.settlementService.GetPlan(c.Context(), planID)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Success(c, plan)
}

func (h *PlanHandler) GetUserPlans(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid user id")
	}

	plans, err := h.settlementService.GetUserPlans(c.Context(), userID)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Success(c, fiber.Map{"plans": plans})
}

// PreviewTermination quotes an early termination without committing it.
func (h *PlanHandler) PreviewTermination(c *fiber.Ctx) error {
	planID, err := parsePlanID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid plan id")
	}

	quote, err := h.settlementService.PreviewTermination(c.Context(), planID)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Success(c, quote)
}

func (h *PlanHandler) Terminate(c *fiber.Ctx) error {
	planID, err := parsePlanID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid plan id")
	}

	quote, err := h.settlementService.Terminate(c.Context(), planID)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Success(c, quote)
}

// RunSweep triggers a quarterly disbursement sweep. Operations normally
// relies on the sweeper binary; this endpoint exists for manual replays.
func (h *PlanHandler) RunSweep(c *fiber.Ctx) error {
	asOf := time.Now().UTC()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.BadRequest(c, "as_of must be RFC3339")
		}
		asOf = parsed
	}

	report, err := h.settlementService.RunQuarterlySweep(c.Context(), asOf)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Success(c, report)
}
