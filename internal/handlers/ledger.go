package handlers

import (
	"strconv"
	"time"

	"finagold/internal/services/ledger"
	"finagold/internal/utils"
	"finagold/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type LedgerHandler struct {
	ledgerService ledger.Service
}

func NewLedgerHandler(ledgerService ledger.Service) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// GetWalletHistory returns one cursor page of a wallet's entries in
// append order. Pass the returned next_cursor back to resume.
func (h *LedgerHandler) GetWalletHistory(c *fiber.Ctx) error {
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

	cursor, _ := strconv.ParseInt(c.Query("cursor", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	page, err := h.ledgerService.GetEntriesForWallet(c.Context(), userID, wallet, cursor, limit)
	if err != nil {
		return utils.DomainError(c, err)
	}

	return utils.Success(c, page)
}

// GetTransaction returns every leg of one transaction group.
func (h *LedgerHandler) GetTransaction(c *fiber.Ctx) error {
	transactionID := c.Params("transactionId")
	if transactionID == "" {
		return utils.BadRequest(c, "transaction id is required")
	}

	entries, err := h.ledgerService.GetEntriesForTransaction(c.Context(), transactionID)
	if err != nil {
		return utils.DomainError(c, err)
	}
	if len(entries) == 0 {
		return utils.NotFound(c, "transaction not found")
	}

	return utils.Success(c, fiber.Map{
		"transaction_id": transactionID,
		"entries":        entries,
	})
}

func (h *LedgerHandler) GetUserEntries(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return utils.BadRequest(c, "invalid user id")
	}

	p := utils.GetPagination(c, 1, 50)
	entries, total, err := h.ledgerService.GetEntriesForUser(c.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		return utils.DomainError(c, err)
	}
	p.SetTotal(total)

	return utils.Success(c, utils.NewPaginatedResponse(entries, p))
}

// GetEntriesInRange returns entries created inside a time window. Admin
// surface used for exports and spot audits.
func (h *LedgerHandler) GetEntriesInRange(c *fiber.Ctx) error {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return utils.BadRequest(c, "from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return utils.BadRequest(c, "to must be RFC3339")
	}
	if !to.After(from) {
		return utils.BadRequest(c, "to must be after from")
	}

	p := utils.GetPagination(c, 1, 100)
	entries, err := h.ledgerService.GetEntriesInRange(c.Context(), from, to, p.Limit, p.Offset)
	if err != nil {
		return utils.DomainError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"from":    from,
		"to":      to,
		"entries": entries,
	})
}

// VerifyChain recomputes a wallet's hash chain and reports the first
// break, if any.
func (h *LedgerHandler) VerifyChain(c *fiber.Ctx) error {
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

	report, err := h.ledgerService.VerifyWalletChain(c.Context(), userID, wallet)
	if err != nil {
		return utils.DomainError(c, err)
	}

	return utils.Success(c, report)
}
