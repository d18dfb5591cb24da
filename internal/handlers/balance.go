package handlers

import (
	"strconv"

	"finagold/internal/services/balance"
	"finagold/internal/utils"
	"finagold/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type BalanceHandler struct {
	balanceService balance.Service
}

func NewBalanceHandler(balanceService balance.Service) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
	}
}

// parseUserID reads the :userId path parameter.
func parseUserID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.ErrBadRequest
	}
	return uint(id), nil
}

func (h *BalanceHandler) GetBalance(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid user id")
	}

	wallet := c.Params("wallet")
	v := validation.New()
	v.CustomerWallet("wallet", wallet)
	if !v.Valid() {
		return utils.BadRequest(c, v.Errors["wallet"])
	}

	grams, err := h.balanceService.GetBalance(c.Context(), userID, wallet)
	if err != nil {
		return utils.DomainError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"user_id":    userID,
		"wallet":     wallet,
		"gold_grams": grams,
	})
}

func (h *BalanceHandler) GetAllBalances(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid user id")
	}

	balances, err := h.balanceService.GetAllBalances(c.Context(), userID)
	if err != nil {
		return utils.DomainError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"user_id":  userID,
		"balances": balances,
	})
}
