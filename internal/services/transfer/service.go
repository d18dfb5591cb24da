// Package transfer orchestrates the customer-facing wallet operations:
// deposits, withdrawals, peer transfers, liquid/flexible conversions and
// vault moves. Each operation commits one ledger transaction group and
// records its workflow steps for later audit.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"

	apperr "finagold/internal/errors"
	"finagold/internal/models"
	"finagold/internal/services/ledger"
	"finagold/internal/services/pricing"
	"finagold/internal/services/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxAppendRetries = 3

// Service executes wallet operations.
type Service interface {
	ConfirmDeposit(ctx context.Context, req DepositRequest) (*OperationResult, error)
	Withdraw(ctx context.Context, req WithdrawalRequest) (*OperationResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*OperationResult, error)
	Convert(ctx context.Context, req ConversionRequest) (*OperationResult, error)
	VaultTransfer(ctx context.Context, req VaultRequest) (*OperationResult, error)

	// ConfirmVaultCustody records the vault operator's confirmation for a
	// pending vault move and closes its workflow.
	ConfirmVaultCustody(ctx context.Context, flowInstanceID, custodyRef string) error
}

type service struct {
	ledgerSvc ledger.Service
	feed      pricing.PriceFeed
	flows     workflow.Service
}

// NewService creates a new transfer service
func NewService(ledgerSvc ledger.Service, feed pricing.PriceFeed, flows workflow.Service) Service {
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if feed == nil {
		panic("price feed is required")
	}
	if flows == nil {
		panic("workflow service is required")
	}

	return &service{
		ledgerSvc: ledgerSvc,
		feed:      feed,
		flows:     flows,
	}
}

func (s *service) ConfirmDeposit(ctx context.Context, req DepositRequest) (*OperationResult, error) {
	if err := validateGrams(req.GoldGrams); err != nil {
		return nil, err
	}
	if req.ExternalRef == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidEntry, errors.New("external reference is required"))
	}

	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get market price: %w", err)
	}

	transactionID := uuid.NewString()
	flow, err := s.flows.StartFlow(ctx, models.FlowDeposit, req.UserID, transactionID)
	if err != nil {
		return nil, err
	}

	s.recordStep(ctx, flow.FlowInstanceID, "validate_payment", "", req.ExternalRef)

	value := req.GoldGrams.Mul(price)
	entries, err := s.appendWithRetry(ctx, transactionID, []ledger.EntryDraft{{
		UserID:       req.UserID,
		Action:       models.ActionDeposit,
		Wallet:       models.WalletLGPW,
		FromWallet:   models.WalletExternal,
		ToWallet:     models.WalletLGPW,
		GoldGrams:    req.GoldGrams,
		ValueUSD:     value,
		GoldPriceUSD: price,
		Metadata:     map[string]interface{}{"external_ref": req.ExternalRef},
	}})
	if err != nil {
		s.recordStepFailure(ctx, flow.FlowInstanceID, "credit_wallet", err)
		s.completeFlow(ctx, flow.FlowInstanceID)
		return nil, err
	}

	s.recordStep(ctx, flow.FlowInstanceID, "credit_wallet",
		req.GoldGrams.String(), entries[0].GoldGrams.String())
	s.recordStep(ctx, flow.FlowInstanceID, "notify", "", "queued")
	s.completeFlow(ctx, flow.FlowInstanceID)

	return result(transactionID, flow.FlowInstanceID, req.GoldGrams, value, price), nil
}

func (s *service) Withdraw(ctx context.Context, req WithdrawalRequest) (*OperationResult, error) {
	if err := validateGrams(req.GoldGrams); err != nil {
		return nil, err
	}

	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get market price: %w", err)
	}

	transactionID := uuid.NewString()
	flow, err := s.flows.StartFlow(ctx, models.FlowWithdrawal, req.UserID, transactionID)
	if err != nil {
		return nil, err
	}

	value := req.GoldGrams.Mul(price)
	entries, err := s.appendWithRetry(ctx, transactionID, []ledger.EntryDraft{{
		UserID:       req.UserID,
		Action:       models.ActionWithdrawal,
		Wallet:       models.WalletLGPW,
		FromWallet:   models.WalletLGPW,
		ToWallet:     models.WalletExternal,
		GoldGrams:    req.GoldGrams.Neg(),
		ValueUSD:     value,
		GoldPriceUSD: price,
	}})
	if err != nil {
		s.recordStepFailure(ctx, flow.FlowInstanceID, "validate_balance", err)
		s.completeFlow(ctx, flow.FlowInstanceID)
		return nil, err
	}

	s.recordStep(ctx, flow.FlowInstanceID, "validate_balance", "", "sufficient")
	s.recordStep(ctx, flow.FlowInstanceID, "debit_wallet",
		req.GoldGrams.Neg().String(), entries[0].GoldGrams.String())
	s.recordStep(ctx, flow.FlowInstanceID, "settle_fiat", "", value.String())
	s.recordStep(ctx, flow.FlowInstanceID, "notify", "", "queued")
	s.completeFlow(ctx, flow.FlowInstanceID)

	return result(transactionID, flow.FlowInstanceID, req.GoldGrams, value, price), nil
}

func (s *service) Transfer(ctx context.Context, req TransferRequest) (*OperationResult, error) {
	if err := validateGrams(req.GoldGrams); err != nil {
		return nil, err
	}
	if req.FromUserID == req.ToUserID {
		return nil, apperr.Wrap(apperr.ErrInvalidEntry, errors.New("cannot transfer to yourself"))
	}

	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get market price: %w", err)
	}

	transactionID := uuid.NewString()
	flow, err := s.flows.StartFlow(ctx, models.FlowTransfer, req.FromUserID, transactionID)
	if err != nil {
		return nil, err
	}

	var meta map[string]interface{}
	if req.Note != "" {
		meta = map[string]interface{}{"note": req.Note}
	}

	value := req.GoldGrams.Mul(price)
	entries, err := s.appendWithRetry(ctx, transactionID, []ledger.EntryDraft{
		{
			UserID:       req.FromUserID,
			Action:       models.ActionTransferSend,
			Wallet:       models.WalletLGPW,
			FromWallet:   models.WalletLGPW,
			ToWallet:     models.WalletLGPW,
			GoldGrams:    req.GoldGrams.Neg(),
			ValueUSD:     value,
			GoldPriceUSD: price,
			Metadata:     meta,
		},
		{
			UserID:       req.ToUserID,
			Action:       models.ActionTransferReceive,
			Wallet:       models.WalletLGPW,
			FromWallet:   models.WalletLGPW,
			ToWallet:     models.WalletLGPW,
			GoldGrams:    req.GoldGrams,
			ValueUSD:     value,
			GoldPriceUSD: price,
			Metadata:     meta,
		},
	})
	if err != nil {
		s.recordStepFailure(ctx, flow.FlowInstanceID, "debit_source", err)
		s.completeFlow(ctx, flow.FlowInstanceID)
		return nil, err
	}

	s.recordStep(ctx, flow.FlowInstanceID, "debit_source",
		req.GoldGrams.Neg().String(), entries[0].GoldGrams.String())
	s.recordStep(ctx, flow.FlowInstanceID, "credit_destination",
		req.GoldGrams.String(), entries[1].GoldGrams.String())
	s.recordStep(ctx, flow.FlowInstanceID, "notify", "", "queued")
	s.completeFlow(ctx, flow.FlowInstanceID)

	return result(transactionID, flow.FlowInstanceID, req.GoldGrams, value, price), nil
}

func (s *service) Convert(ctx context.Context, req ConversionRequest) (*OperationResult, error) {
	if err := validateGrams(req.GoldGrams); err != nil {
		return nil, err
	}

	action, err := conversionAction(req.FromWallet, req.ToWallet)
	if err != nil {
		return nil, err
	}

	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get market price: %w", err)
	}

	transactionID := uuid.NewString()
	flow, err := s.flows.StartFlow(ctx, models.FlowConversion, req.UserID, transactionID)
	if err != nil {
		return nil, err
	}

	value := req.GoldGrams.Mul(price)
	entries, err := s.appendWithRetry(ctx, transactionID, []ledger.EntryDraft{
		{
			UserID:       req.UserID,
			Action:       action,
			Wallet:       req.FromWallet,
			FromWallet:   req.FromWallet,
			ToWallet:     req.ToWallet,
			GoldGrams:    req.GoldGrams.Neg(),
			ValueUSD:     value,
			GoldPriceUSD: price,
		},
		{
			UserID:       req.UserID,
			Action:       action,
			Wallet:       req.ToWallet,
			FromWallet:   req.FromWallet,
			ToWallet:     req.ToWallet,
			GoldGrams:    req.GoldGrams,
			ValueUSD:     value,
			GoldPriceUSD: price,
		},
	})
	if err != nil {
		s.recordStepFailure(ctx, flow.FlowInstanceID, "debit_source", err)
		s.completeFlow(ctx, flow.FlowInstanceID)
		return nil, err
	}

	s.recordStep(ctx, flow.FlowInstanceID, "debit_source",
		req.GoldGrams.Neg().String(), entries[0].GoldGrams.String())
	s.recordStep(ctx, flow.FlowInstanceID, "credit_destination",
		req.GoldGrams.String(), entries[1].GoldGrams.String())
	s.completeFlow(ctx, flow.FlowInstanceID)

	return result(transactionID, flow.FlowInstanceID, req.GoldGrams, value, price), nil
}

func (s *service) VaultTransfer(ctx context.Context, req VaultRequest) (*OperationResult, error) {
	if err := validateGrams(req.GoldGrams); err != nil {
		return nil, err
	}

	from, to := models.WalletVault, models.WalletLGPW
	if req.ToVault {
		from, to = models.WalletLGPW, models.WalletVault
	}

	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get market price: %w", err)
	}

	transactionID := uuid.NewString()
	flow, err := s.flows.StartFlow(ctx, models.FlowVaultTransfer, req.UserID, transactionID)
	if err != nil {
		return nil, err
	}

	value := req.GoldGrams.Mul(price)
	entries, err := s.appendWithRetry(ctx, transactionID, []ledger.EntryDraft{
		{
			UserID:       req.UserID,
			Action:       models.ActionVaultTransfer,
			Wallet:       from,
			FromWallet:   from,
			ToWallet:     to,
			GoldGrams:    req.GoldGrams.Neg(),
			ValueUSD:     value,
			GoldPriceUSD: price,
		},
		{
			UserID:       req.UserID,
			Action:       models.ActionVaultTransfer,
			Wallet:       to,
			FromWallet:   from,
			ToWallet:     to,
			GoldGrams:    req.GoldGrams,
			ValueUSD:     value,
			GoldPriceUSD: price,
		},
	})
	if err != nil {
		s.recordStepFailure(ctx, flow.FlowInstanceID, "debit_source", err)
		s.completeFlow(ctx, flow.FlowInstanceID)
		return nil, err
	}

	s.recordStep(ctx, flow.FlowInstanceID, "debit_source",
		req.GoldGrams.Neg().String(), entries[0].GoldGrams.String())
	s.recordStep(ctx, flow.FlowInstanceID, "credit_vault",
		req.GoldGrams.String(), entries[1].GoldGrams.String())
	// custody_confirmation stays pending until the vault operator calls
	// back; the flow is left open so reconciliation can count it in flight.
	return result(transactionID, flow.FlowInstanceID, req.GoldGrams, value, price), nil
}

func (s *service) ConfirmVaultCustody(ctx context.Context, flowInstanceID, custodyRef string) error {
	if custodyRef == "" {
		return apperr.Wrap(apperr.ErrInvalidEntry, errors.New("custody reference is required"))
	}
	expected := "confirmed"
	actual := "confirmed"
	if _, err := s.flows.RecordStep(ctx, flowInstanceID, "custody_confirmation", workflow.StepOptions{
		Expected: &expected,
		Actual:   &actual,
		Payload:  map[string]interface{}{"custody_ref": custodyRef},
	}); err != nil {
		return err
	}
	return s.flows.CompleteFlow(ctx, flowInstanceID)
}

func (s *service) appendWithRetry(ctx context.Context, transactionID string, drafts []ledger.EntryDraft) ([]models.LedgerEntry, error) {
	var lastErr error
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		entries, err := s.ledgerSvc.AppendEntries(ctx, transactionID, drafts)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, apperr.ErrConcurrentModification) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *service) recordStep(ctx context.Context, flowInstanceID, stepKey, expected, actual string) {
	opts := workflow.StepOptions{Actual: &actual}
	if expected != "" {
		opts.Expected = &expected
	}
	if _, err := s.flows.RecordStep(ctx, flowInstanceID, stepKey, opts); err != nil {
		log.Printf("failed to record step %s of flow %s: %v", stepKey, flowInstanceID, err)
	}
}

func (s *service) recordStepFailure(ctx context.Context, flowInstanceID, stepKey string, cause error) {
	expected := "committed"
	actual := cause.Error()
	if _, err := s.flows.RecordStep(ctx, flowInstanceID, stepKey, workflow.StepOptions{
		Expected: &expected,
		Actual:   &actual,
	}); err != nil {
		log.Printf("failed to record step %s of flow %s: %v", stepKey, flowInstanceID, err)
	}
}

func (s *service) completeFlow(ctx context.Context, flowInstanceID string) {
	if err := s.flows.CompleteFlow(ctx, flowInstanceID); err != nil {
		log.Printf("failed to complete flow %s: %v", flowInstanceID, err)
	}
}

func conversionAction(from, to string) (string, error) {
	switch {
	case from == models.WalletLGPW && to == models.WalletFGPW:
		return models.ActionLGPWToFGPW, nil
	case from == models.WalletFGPW && to == models.WalletLGPW:
		return models.ActionFGPWToLGPW, nil
	default:
		return "", apperr.Wrap(apperr.ErrInvalidEntry,
			fmt.Errorf("unsupported conversion %s to %s", from, to))
	}
}

func validateGrams(grams decimal.Decimal) error {
	if !grams.IsPositive() {
		return apperr.Wrap(apperr.ErrInvalidEntry, errors.New("gold amount must be positive"))
	}
	if !grams.Equal(grams.Truncate(models.GramPrecision)) {
		return apperr.Wrap(apperr.ErrInvalidEntry,
			fmt.Errorf("gold amount exceeds %d decimal places", models.GramPrecision))
	}
	return nil
}

func result(transactionID, flowInstanceID string, grams, value, price decimal.Decimal) *OperationResult {
	return &OperationResult{
		TransactionID:  transactionID,
		FlowInstanceID: flowInstanceID,
		GoldGrams:      grams,
		ValueUSD:       value,
		GoldPriceUSD:   price,
	}
}
