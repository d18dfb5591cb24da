// Package reconciliation compares the digital gold recorded across all
// internal wallets against the physical custody figure reported by the
// vault operator, and persists the outcome as an auditable report.
package reconciliation

import (
	"context"
	"fmt"
	"log"
	"time"

	apperr "finagold/internal/errors"
	"finagold/internal/models"
	"finagold/internal/repositories"

	"github.com/shopspring/decimal"
)

// CustodyProvider reports the physical gold held in the vault, in grams.
// Implementations typically call the custodian's API or read a signed
// attestation file.
type CustodyProvider interface {
	PhysicalHoldingsGrams(ctx context.Context) (decimal.Decimal, error)
}

// StaticCustody is a fixed-figure provider for tests and bootstrapping.
type StaticCustody struct {
	Grams decimal.Decimal
}

func (c StaticCustody) PhysicalHoldingsGrams(ctx context.Context) (decimal.Decimal, error) {
	return c.Grams, nil
}

// Config controls how much variance a reconciliation run tolerates.
// Tolerance grows with the number of in-flight workflows because each
// may hold legs the custodian has already moved physically.
type Config struct {
	BaseToleranceGrams   decimal.Decimal
	PerInFlightTolerance decimal.Decimal
}

func (c Config) withDefaults() Config {
	if c.BaseToleranceGrams.IsZero() {
		c.BaseToleranceGrams = DefaultBaseTolerance
	}
	if c.PerInFlightTolerance.IsZero() {
		c.PerInFlightTolerance = DefaultPerInFlightTolerance
	}
	return c
}

// Service runs and serves reconciliation reports.
type Service interface {
	// Reconcile compares digital holdings to the custody figure, records
	// integrity findings and persists a report. A mismatched run returns
	// the report together with ErrReconciliationMismatch.
	Reconcile(ctx context.Context) (*models.ReconciliationReport, error)

	Latest(ctx context.Context) (*models.ReconciliationReport, error)
	History(ctx context.Context, limit int) ([]models.ReconciliationReport, error)
}

type service struct {
	ledgerRepo repositories.LedgerRepository
	wfRepo     repositories.WorkflowRepository
	reportRepo repositories.ReconciliationRepository
	custody    CustodyProvider
	config     Config
}

// NewService creates a new reconciliation service
func NewService(
	ledgerRepo repositories.LedgerRepository,
	wfRepo repositories.WorkflowRepository,
	reportRepo repositories.ReconciliationRepository,
	custody CustodyProvider,
	config Config,
) Service {
	if ledgerRepo == nil {
		panic("ledger repo is required")
	}
	if wfRepo == nil {
		panic("workflow repo is required")
	}
	if reportRepo == nil {
		panic("reconciliation repo is required")
	}
	if custody == nil {
		panic("custody provider is required")
	}

	return &service{
		ledgerRepo: ledgerRepo,
		wfRepo:     wfRepo,
		reportRepo: reportRepo,
		custody:    custody,
		config:     config.withDefaults(),
	}
}

func (s *service) Reconcile(ctx context.Context) (*models.ReconciliationReport, error) {
	physical, err := s.custody.PhysicalHoldingsGrams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get custody holdings: %w", err)
	}

	digital, err := s.ledgerRepo.TotalDigitalGrams(ctx)
	if err != nil {
		return nil, err
	}

	inFlight, err := s.wfRepo.CountInFlight(ctx)
	if err != nil {
		return nil, err
	}

	tolerance := s.config.BaseToleranceGrams.Add(
		s.config.PerInFlightTolerance.Mul(decimal.NewFromInt(inFlight)))
	variance := physical.Sub(digital)

	report := &models.ReconciliationReport{
		PhysicalGrams:  physical,
		DigitalGrams:   digital,
		VarianceGrams:  variance,
		ToleranceGrams: tolerance,
		InFlightCount:  int(inFlight),
		Status:         models.ReconciliationMatched,
		CheckedAt:      time.Now().UTC(),
	}

	breakdown := map[string]interface{}{}

	conservation, err := s.ledgerRepo.ConservationViolations(ctx)
	if err != nil {
		return nil, err
	}
	if len(conservation) > 0 {
		report.Status = models.ReconciliationMismatch
		breakdown["conservation_violations"] = conservation
	}

	mismatches, err := s.ledgerRepo.HeadMismatches(ctx)
	if err != nil {
		return nil, err
	}
	if len(mismatches) > 0 {
		report.Status = models.ReconciliationMismatch
		breakdown["balance_mismatches"] = mismatches
	}

	if variance.Abs().GreaterThan(tolerance) {
		report.Status = models.ReconciliationMismatch
		breakdown["variance_over_tolerance"] = map[string]string{
			"variance":  variance.String(),
			"tolerance": tolerance.String(),
		}

		// Attribute the variance: the per-wallet snapshots let an
		// operator see which wallets make up the digital total.
		heads, err := s.ledgerRepo.ListWalletHeads(ctx)
		if err != nil {
			return nil, err
		}
		breakdown["wallet_balances"] = heads
	}

	if len(breakdown) > 0 {
		report.Breakdown = models.NewJSON(breakdown)
	}

	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	if report.Status == models.ReconciliationMismatch {
		log.Printf("RECONCILIATION ALERT: variance %s grams over tolerance %s, report %d",
			variance.String(), tolerance.String(), report.ID)
		return report, apperr.Wrap(apperr.ErrReconciliationMismatch,
			fmt.Errorf("variance %s exceeds tolerance %s", variance, tolerance))
	}
	return report, nil
}

func (s *service) Latest(ctx context.Context) (*models.ReconciliationReport, error) {
	return s.reportRepo.Latest(ctx)
}

func (s *service) History(ctx context.Context, limit int) ([]models.ReconciliationReport, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return s.reportRepo.List(ctx, limit, 0)
}
