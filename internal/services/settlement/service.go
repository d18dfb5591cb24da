// Package settlement implements the BNSL plan economics: quarterly
// margin disbursement, maturity settlement and early termination.
// The math lives in pure calculator functions; this service binds them
// to the ledger inside plan-serialized transactions so a termination and
// a quarter sweep racing on the same plan cannot both pay out.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	apperr "finagold/internal/errors"
	"finagold/internal/models"
	"finagold/internal/repositories"
	"finagold/internal/services/balance"
	"finagold/internal/services/ledger"
	"finagold/internal/services/pricing"
	"finagold/internal/services/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxAppendRetries bounds retries on concurrent-modification conflicts.
const maxAppendRetries = 3

// Service drives the lifecycle of BNSL plans.
type Service interface {
	Enroll(ctx context.Context, req EnrollmentRequest) (*models.BnslPlan, error)
	GetPlan(ctx context.Context, planID uint) (*models.BnslPlan, error)
	GetUserPlans(ctx context.Context, userID uint) ([]models.BnslPlan, error)

	// RunQuarterlySweep pays every due, unpaid quarter across all active
	// plans and matures plans past their maturity date. Idempotent:
	// re-running a partially failed sweep never double-disburses.
	RunQuarterlySweep(ctx context.Context, asOf time.Time) (*SweepReport, error)

	Mature(ctx context.Context, planID uint, asOf time.Time) ([]models.LedgerEntry, error)
	Terminate(ctx context.Context, planID uint) (*TerminationQuote, error)

	// PreviewTermination computes an early-termination quote without
	// committing anything, for display before the user confirms.
	PreviewTermination(ctx context.Context, planID uint) (*TerminationQuote, error)
}

type service struct {
	ledgerSvc  ledger.Service
	ledgerRepo repositories.LedgerRepository
	planRepo   repositories.PlanRepository
	balanceSvc balance.Service
	feed       pricing.PriceFeed
	flows      workflow.Service
}

// NewService creates a new settlement service
func NewService(
	ledgerSvc ledger.Service,
	ledgerRepo repositories.LedgerRepository,
	planRepo repositories.PlanRepository,
	balanceSvc balance.Service,
	feed pricing.PriceFeed,
	flows workflow.Service,
) Service {
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if ledgerRepo == nil {
		panic("ledger repo is required")
	}
	if planRepo == nil {
		panic("plan repo is required")
	}
	if balanceSvc == nil {
		panic("balance service is required")
	}
	if feed == nil {
		panic("price feed is required")
	}
	if flows == nil {
		panic("workflow service is required")
	}

	return &service{
		ledgerSvc:  ledgerSvc,
		ledgerRepo: ledgerRepo,
		planRepo:   planRepo,
		balanceSvc: balanceSvc,
		feed:       feed,
		flows:      flows,
	}
}

func (s *service) Enroll(ctx context.Context, req EnrollmentRequest) (*models.BnslPlan, error) {
	if err := validateEnrollment(req); err != nil {
		return nil, err
	}

	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get market price: %w", err)
	}

	transactionID := uuid.NewString()
	flow, err := s.flows.StartFlow(ctx, models.FlowPlanEnrollment, req.UserID, transactionID)
	if err != nil {
		return nil, err
	}

	available, err := s.balanceSvc.GetBalance(ctx, req.UserID, models.WalletLGPW)
	if err != nil {
		return nil, err
	}
	s.recordStep(ctx, flow.FlowInstanceID, "validate_balance",
		req.GoldSoldGrams.String(), available.String())
	if available.LessThan(req.GoldSoldGrams) {
		s.completeFlow(ctx, flow.FlowInstanceID)
		return nil, apperr.ErrInsufficientBalance
	}

	now := time.Now().UTC()
	plan := &models.BnslPlan{
		UserID:          req.UserID,
		TenorMonths:     req.TenorMonths,
		GoldSoldGrams:   req.GoldSoldGrams,
		EnrollmentPrice: price,
		MarginAnnualPct: req.MarginAnnualPct,
		Status:          models.PlanStatusActive,
		StartDate:       now,
		MaturityDate:    now.AddDate(0, req.TenorMonths, 0),
	}

	_, err = s.appendWithRetry(ctx, transactionID, func(tx repositories.LedgerRepository) ([]ledger.EntryDraft, error) {
		// The plan row and its lock entries commit together.
		if err := tx.CreatePlan(ctx, plan); err != nil {
			return nil, err
		}
		lockValue := req.GoldSoldGrams.Mul(price)
		return []ledger.EntryDraft{
			{
				UserID:       req.UserID,
				Action:       models.ActionBnslLock,
				Wallet:       models.WalletLGPW,
				FromWallet:   models.WalletLGPW,
				ToWallet:     models.WalletBNSL,
				GoldGrams:    req.GoldSoldGrams.Neg(),
				ValueUSD:     lockValue,
				GoldPriceUSD: price,
				PlanID:       &plan.ID,
			},
			{
				UserID:       req.UserID,
				Action:       models.ActionBnslLock,
				Wallet:       models.WalletBNSL,
				FromWallet:   models.WalletLGPW,
				ToWallet:     models.WalletBNSL,
				GoldGrams:    req.GoldSoldGrams,
				ValueUSD:     lockValue,
				GoldPriceUSD: price,
				PlanID:       &plan.ID,
			},
		}, nil
	})
	if err != nil {
		s.recordStepFailure(ctx, flow.FlowInstanceID, "lock_gold", err)
		s.completeFlow(ctx, flow.FlowInstanceID)
		return nil, err
	}

	s.recordStep(ctx, flow.FlowInstanceID, "create_plan", "", fmt.Sprintf("%d", plan.ID))
	s.recordStep(ctx, flow.FlowInstanceID, "lock_gold",
		req.GoldSoldGrams.String(), req.GoldSoldGrams.String())
	s.completeFlow(ctx, flow.FlowInstanceID)

	return plan, nil
}

func (s *service) GetPlan(ctx context.Context, planID uint) (*models.BnslPlan, error) {
	return s.planRepo.GetByID(ctx, planID)
}

func (s *service) GetUserPlans(ctx context.Context, userID uint) ([]models.BnslPlan, error) {
	return s.planRepo.GetByUserID(ctx, userID)
}

func (s *service) RunQuarterlySweep(ctx context.Context, asOf time.Time) (*SweepReport, error) {
	plans, err := s.planRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{PlansChecked: len(plans)}
	for i := range plans {
		plan := &plans[i]

		if !asOf.Before(plan.MaturityDate) {
			if _, err := s.Mature(ctx, plan.ID, asOf); err != nil {
				if errors.Is(err, apperr.ErrPlanNotEligible) {
					report.PlansSkipped++
					continue
				}
				report.FailedPlanIDs = append(report.FailedPlanIDs, plan.ID)
				report.FailureMessages = append(report.FailureMessages, err.Error())
				continue
			}
			report.PlansMatured++
			continue
		}

		paid, err := s.disbursePlan(ctx, plan.ID, asOf)
		if err != nil {
			report.FailedPlanIDs = append(report.FailedPlanIDs, plan.ID)
			report.FailureMessages = append(report.FailureMessages, err.Error())
			continue
		}
		if paid == 0 {
			report.PlansSkipped++
		}
		report.QuartersPaid += paid
	}
	return report, nil
}

// disbursePlan pays every due, unpaid quarter for one plan. The price is
// captured once and stamped onto each payout entry for replay.
func (s *service) disbursePlan(ctx context.Context, planID uint, asOf time.Time) (int, error) {
	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get market price: %w", err)
	}

	transactionID := uuid.NewString()
	var plan *models.BnslPlan
	var quartersPaid []int

	committed, err := s.appendWithRetry(ctx, transactionID, func(tx repositories.LedgerRepository) ([]ledger.EntryDraft, error) {
		quartersPaid = quartersPaid[:0]

		if err := tx.LockPlan(ctx, planID); err != nil {
			return nil, err
		}
		p, err := tx.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return nil, err
		}
		// A terminated or matured plan has no further disbursements; the
		// sweep losing a race to a termination simply walks away.
		if p.Status != models.PlanStatusActive {
			return nil, nil
		}
		plan = p

		grams := QuarterlyDisbursementGrams(p, price)
		marginUSD := p.QuarterlyMarginUSD()

		var drafts []ledger.EntryDraft
		for q := 1; q <= p.Quarters(); q++ {
			if p.QuarterDueDate(q).After(asOf) {
				break
			}
			exists, err := tx.DisbursementExists(ctx, planID, q)
			if err != nil {
				return nil, err
			}
			if exists {
				continue
			}
			quarter := q
			drafts = append(drafts, ledger.EntryDraft{
				UserID:       p.UserID,
				Action:       models.ActionPayoutCredit,
				Wallet:       models.WalletLGPW,
				FromWallet:   models.WalletExternal,
				ToWallet:     models.WalletLGPW,
				GoldGrams:    grams,
				ValueUSD:     marginUSD,
				GoldPriceUSD: price,
				PlanID:       &planID,
				QuarterIndex: &quarter,
			})
			quartersPaid = append(quartersPaid, quarter)
		}
		return drafts, nil
	})
	if err != nil {
		return 0, err
	}
	if len(committed) == 0 {
		return 0, nil
	}

	flow, err := s.flows.StartFlow(ctx, models.FlowPlanDisbursement, plan.UserID, transactionID)
	if err != nil {
		log.Printf("failed to open disbursement flow for plan %d: %v", planID, err)
		return len(committed), nil
	}
	s.recordStep(ctx, flow.FlowInstanceID, "check_idempotency",
		"", fmt.Sprintf("%d new quarters %v", len(quartersPaid), quartersPaid))
	s.recordStep(ctx, flow.FlowInstanceID, "capture_price", "", price.String())
	expected := QuarterlyDisbursementGrams(plan, price).Mul(decimal.NewFromInt(int64(len(committed))))
	s.recordStep(ctx, flow.FlowInstanceID, "credit_payout",
		expected.String(), sumGrams(committed).String())
	s.completeFlow(ctx, flow.FlowInstanceID)

	return len(committed), nil
}

func (s *service) Mature(ctx context.Context, planID uint, asOf time.Time) ([]models.LedgerEntry, error) {
	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get market price: %w", err)
	}

	transactionID := uuid.NewString()
	var plan *models.BnslPlan

	committed, err := s.appendWithRetry(ctx, transactionID, func(tx repositories.LedgerRepository) ([]ledger.EntryDraft, error) {
		if err := tx.LockPlan(ctx, planID); err != nil {
			return nil, err
		}
		p, err := tx.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return nil, err
		}
		if p.Status != models.PlanStatusActive {
			return nil, apperr.Wrap(apperr.ErrPlanNotEligible,
				fmt.Errorf("plan %d is %s", planID, p.Status))
		}
		if asOf.Before(p.MaturityDate) {
			return nil, apperr.Wrap(apperr.ErrPlanNotEligible,
				fmt.Errorf("plan %d matures %s", planID, p.MaturityDate.Format(time.RFC3339)))
		}
		plan = p

		if err := tx.SetPlanStatus(ctx, planID, models.PlanStatusMatured, asOf); err != nil {
			return nil, err
		}

		grams := MaturityGrams(p, price)
		return append(
			releaseDrafts(p, price, planID),
			ledger.EntryDraft{
				UserID:       p.UserID,
				Action:       models.ActionPayoutCredit,
				Wallet:       models.WalletLGPW,
				FromWallet:   models.WalletExternal,
				ToWallet:     models.WalletLGPW,
				GoldGrams:    grams,
				ValueUSD:     p.BasePriceComponentUSD(),
				GoldPriceUSD: price,
				PlanID:       &planID,
			}), nil
	})
	if err != nil {
		return nil, err
	}

	flow, ferr := s.flows.StartFlow(ctx, models.FlowPlanMaturity, plan.UserID, transactionID)
	if ferr == nil {
		s.recordStep(ctx, flow.FlowInstanceID, "check_eligibility", "", models.PlanStatusMatured)
		s.recordStep(ctx, flow.FlowInstanceID, "capture_price", "", price.String())
		s.recordStep(ctx, flow.FlowInstanceID, "release_locked_gold",
			plan.GoldSoldGrams.Neg().String(), committed[0].GoldGrams.String())
		s.recordStep(ctx, flow.FlowInstanceID, "credit_settlement",
			MaturityGrams(plan, price).String(), committed[len(committed)-1].GoldGrams.String())
		s.completeFlow(ctx, flow.FlowInstanceID)
	}

	return committed, nil
}

func (s *service) Terminate(ctx context.Context, planID uint) (*TerminationQuote, error) {
	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get market price: %w", err)
	}

	transactionID := uuid.NewString()
	var plan *models.BnslPlan
	var quote TerminationQuote

	committed, err := s.appendWithRetry(ctx, transactionID, func(tx repositories.LedgerRepository) ([]ledger.EntryDraft, error) {
		if err := tx.LockPlan(ctx, planID); err != nil {
			return nil, err
		}
		p, err := tx.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return nil, err
		}
		if p.Status != models.PlanStatusActive {
			return nil, apperr.Wrap(apperr.ErrPlanNotEligible,
				fmt.Errorf("plan %d is %s", planID, p.Status))
		}
		plan = p

		// Reimbursement is the gross USD value of payouts already made,
		// read under the plan lock so a racing sweep cannot slip one in.
		reimbursed, err := tx.SumPayoutValueUSD(ctx, planID)
		if err != nil {
			return nil, err
		}
		quote = EarlyTerminationQuote(p, price, reimbursed)

		if err := tx.SetPlanStatus(ctx, planID, models.PlanStatusTerminated, time.Now().UTC()); err != nil {
			return nil, err
		}

		drafts := releaseDrafts(p, price, planID)
		// A fully eroded settlement pays nothing; prior payouts are kept.
		if quote.FinalGrams.IsPositive() {
			drafts = append(drafts, ledger.EntryDraft{
				UserID:       p.UserID,
				Action:       models.ActionPayoutCredit,
				Wallet:       models.WalletLGPW,
				FromWallet:   models.WalletExternal,
				ToWallet:     models.WalletLGPW,
				GoldGrams:    quote.FinalGrams,
				ValueUSD:     quote.NetUSD,
				GoldPriceUSD: price,
				PlanID:       &planID,
			})
		}
		return drafts, nil
	})
	if err != nil {
		return nil, err
	}

	flow, ferr := s.flows.StartFlow(ctx, models.FlowPlanTermination, plan.UserID, transactionID)
	if ferr == nil {
		s.recordStep(ctx, flow.FlowInstanceID, "check_eligibility", "", models.PlanStatusTerminated)
		s.recordStep(ctx, flow.FlowInstanceID, "capture_price", "", price.String())
		s.recordStep(ctx, flow.FlowInstanceID, "compute_quote", "", quote.NetUSD.String())
		s.recordStep(ctx, flow.FlowInstanceID, "release_locked_gold",
			plan.GoldSoldGrams.Neg().String(), committed[0].GoldGrams.String())
		if quote.FinalGrams.IsPositive() {
			s.recordStep(ctx, flow.FlowInstanceID, "credit_settlement",
				quote.FinalGrams.String(), committed[len(committed)-1].GoldGrams.String())
		} else {
			s.flows.RecordStep(ctx, flow.FlowInstanceID, "credit_settlement",
				workflow.StepOptions{Skipped: true})
		}
		s.completeFlow(ctx, flow.FlowInstanceID)
	}

	return &quote, nil
}

func (s *service) PreviewTermination(ctx context.Context, planID uint) (*TerminationQuote, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != models.PlanStatusActive {
		return nil, apperr.Wrap(apperr.ErrPlanNotEligible,
			fmt.Errorf("plan %d is %s", planID, plan.Status))
	}

	price, err := s.feed.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get market price: %w", err)
	}
	reimbursed, err := s.ledgerRepo.SumPayoutValueUSD(ctx, planID)
	if err != nil {
		return nil, err
	}

	quote := EarlyTerminationQuote(plan, price, reimbursed)
	return &quote, nil
}

// releaseDrafts hands the locked gold out of the BNSL wallet to the
// buyer on plan close. Legs reference External so the group is exempt
// from the internal zero-sum rule.
func releaseDrafts(p *models.BnslPlan, price decimal.Decimal, planID uint) []ledger.EntryDraft {
	return []ledger.EntryDraft{{
		UserID:       p.UserID,
		Action:       models.ActionBnslRelease,
		Wallet:       models.WalletBNSL,
		FromWallet:   models.WalletBNSL,
		ToWallet:     models.WalletExternal,
		GoldGrams:    p.GoldSoldGrams.Neg(),
		ValueUSD:     p.GoldSoldGrams.Mul(price),
		GoldPriceUSD: price,
		PlanID:       &planID,
	}}
}

func (s *service) appendWithRetry(ctx context.Context, transactionID string, prepare func(tx repositories.LedgerRepository) ([]ledger.EntryDraft, error)) ([]models.LedgerEntry, error) {
	var lastErr error
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		entries, err := s.ledgerSvc.AppendEntriesFunc(ctx, transactionID, prepare)
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

func sumGrams(entries []models.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for i := range entries {
		total = total.Add(entries[i].GoldGrams)
	}
	return total
}

func validateEnrollment(req EnrollmentRequest) error {
	if req.UserID == 0 {
		return apperr.Wrap(apperr.ErrInvalidEntry, errors.New("user id is required"))
	}
	if req.TenorMonths < models.MinTenorMonths || req.TenorMonths > models.MaxTenorMonths || req.TenorMonths%3 != 0 {
		return apperr.Wrap(apperr.ErrInvalidEntry,
			fmt.Errorf("tenor must be whole quarters between %d and %d months",
				models.MinTenorMonths, models.MaxTenorMonths))
	}
	if !req.GoldSoldGrams.IsPositive() {
		return apperr.Wrap(apperr.ErrInvalidEntry, errors.New("gold amount must be positive"))
	}
	if !req.GoldSoldGrams.Equal(req.GoldSoldGrams.Truncate(models.GramPrecision)) {
		return apperr.Wrap(apperr.ErrInvalidEntry,
			fmt.Errorf("gold amount exceeds %d decimal places", models.GramPrecision))
	}
	if !req.MarginAnnualPct.IsPositive() {
		return apperr.Wrap(apperr.ErrInvalidEntry, errors.New("margin percent must be positive"))
	}
	return nil
}
