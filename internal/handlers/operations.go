package handlers

import (
	"finagold/internal/services/transfer"
	"finagold/internal/utils"
	"finagold/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type OperationsHandler struct {
	transferService transfer.Service
}

func NewOperationsHandler(transferService transfer.Service) *OperationsHandler {
	return &OperationsHandler{
		transferService: transferService,
	}
}

func (h *OperationsHandler) ConfirmDeposit(c *fiber.Ctx) error {
	var req transfer.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	v := validation.New()
	v.GoldAmount("gold_grams", req.GoldGrams)
	v.Reference("external_ref", req.ExternalRef)
	if !v.Valid() {
		return utils.Respond(c, fiber.StatusBadRequest, fiber.Map{"errors": v.Errors})
	}

	res, err := h.transferService.ConfirmDeposit(c.Context(), req)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Created(c, res)
}

func (h *OperationsHandler) Withdraw(c *fiber.Ctx) error {
	var req transfer.WithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	v := validation.New()
	v.GoldAmount("gold_grams", req.GoldGrams)
	if !v.Valid() {
		return utils.Respond(c, fiber.StatusBadRequest, fiber.Map{"errors": v.Errors})
	}

	res, err := h.transferService.Withdraw(c.Context(), req)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Created(c, res)
}

func (h *OperationsHandler) Transfer(c *fiber.Ctx) error {
	var req transfer.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	v := validation.New()
	v.GoldAmount("gold_grams", req.GoldGrams)
	v.Note("note", req.Note)
	v.Check(req.FromUserID != req.ToUserID, "to_user_id", "cannot transfer to yourself")
	if !v.Valid() {
		return utils.Respond(c, fiber.StatusBadRequest, fiber.Map{"errors": v.Errors})
	}

	res, err := h.transferService.Transfer(c.Context(), req)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Created(c, res)
}

func (h *OperationsHandler) Convert(c *fiber.Ctx) error {
	var req transfer.ConversionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	v := validation.New()
	v.GoldAmount("gold_grams", req.GoldGrams)
	v.Required("from_wallet", req.FromWallet)
	v.Required("to_wallet", req.ToWallet)
	if !v.Valid() {
		return utils.Respond(c, fiber.StatusBadRequest, fiber.Map{"errors": v.Errors})
	}

	res, err := h.transferService.Convert(c.Context(), req)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Created(c, res)
}

func (h *OperationsHandler) VaultTransfer(c *fiber.Ctx) error {
	var req transfer.VaultRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	v := validation.New()
	v.GoldAmount("gold_grams", req.GoldGrams)
	if !v.Valid() {
		return utils.Respond(c, fiber.StatusBadRequest, fiber.Map{"errors": v.Errors})
	}

	res, err := h.transferService.VaultTransfer(c.Context(), req)
	if err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Created(c, res)
}

// ConfirmVaultCustody is called by the vault operator integration once
// the physical movement is attested.
func (h *OperationsHandler) ConfirmVaultCustody(c *fiber.Ctx) error {
	var req struct {
		FlowInstanceID string `json:"flow_instance_id"`
		CustodyRef     string `json:"custody_ref"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	v := validation.New()
	v.Required("flow_instance_id", req.FlowInstanceID)
	v.Reference("custody_ref", req.CustodyRef)
	if !v.Valid() {
		return utils.Respond(c, fiber.StatusBadRequest, fiber.Map{"errors": v.Errors})
	}

	if err := h.transferService.ConfirmVaultCustody(c.Context(), req.FlowInstanceID, req.CustodyRef); err != nil {
		return utils.DomainError(c, err)
	}
	return utils.Success(c, fiber.Map{"status": "confirmed"})
}
