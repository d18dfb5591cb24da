// Package main runs the background settlement and reconciliation
// sweeps. Deployed as a single replica next to the API server; every
// write it makes is idempotent, so overlapping runs are harmless.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finagold/internal/config"
	apperr "finagold/internal/errors"
	"finagold/internal/repositories"
	"finagold/internal/services/balance"
	"finagold/internal/services/ledger"
	"finagold/internal/services/pricing"
	"finagold/internal/services/reconciliation"
	"finagold/internal/services/settlement"
	"finagold/internal/services/workflow"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := repositories.InitRedis(repositories.NewRedisConfig()); err != nil {
		log.Printf("Redis unavailable, balance reads fall back to the database: %v", err)
	}

	ledgerRepo := repositories.NewLedgerRepository(repositories.DB)
	planRepo := repositories.NewPlanRepository(repositories.DB)
	workflowRepo := repositories.NewWorkflowRepository(repositories.DB)
	reconRepo := repositories.NewReconciliationRepository(repositories.DB)
	cacheRepo := repositories.NewRedisCacheRepository(repositories.RedisClient)

	priceFeed := pricing.NewStaticFeed(config.GetDecimalEnv("GOLD_PRICE_USD", "1000"))
	workflowService := workflow.NewService(workflowRepo, workflow.NewRegistry())
	ledgerService := ledger.NewService(ledgerRepo, cacheRepo, ledger.Config{}, nil)
	balanceService := balance.NewService(ledgerRepo, cacheRepo, 0)

	settlementService := settlement.NewService(
		ledgerService,
		ledgerRepo,
		planRepo,
		balanceService,
		priceFeed,
		workflowService,
	)
	reconService := reconciliation.NewService(
		ledgerRepo,
		workflowRepo,
		reconRepo,
		reconciliation.StaticCustody{Grams: config.GetDecimalEnv("CUSTODY_HOLDINGS_GRAMS", "0")},
		reconciliation.Config{
			BaseToleranceGrams:   config.GetDecimalEnv("RECON_BASE_TOLERANCE_GRAMS", "0.01"),
			PerInFlightTolerance: config.GetDecimalEnv("RECON_PER_IN_FLIGHT_GRAMS", "0.001"),
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepEvery := config.GetDurationEnv("SETTLEMENT_SWEEP_INTERVAL", 1*time.Hour)
	reconEvery := config.GetDurationEnv("RECONCILIATION_INTERVAL", 15*time.Minute)

	settlementTicker := time.NewTicker(sweepEvery)
	defer settlementTicker.Stop()
	reconTicker := time.NewTicker(reconEvery)
	defer reconTicker.Stop()

	log.Printf("sweeper started: settlement every %s, reconciliation every %s", sweepEvery, reconEvery)

	runSettlementSweep(ctx, settlementService)
	runReconciliation(ctx, reconService)

	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper shutting down")
			return
		case <-settlementTicker.C:
			runSettlementSweep(ctx, settlementService)
		case <-reconTicker.C:
			runReconciliation(ctx, reconService)
		}
	}
}

func runSettlementSweep(ctx context.Context, svc settlement.Service) {
	report, err := svc.RunQuarterlySweep(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("settlement sweep failed: %v", err)
		return
	}
	log.Printf("settlement sweep: checked=%d paid=%d matured=%d skipped=%d failed=%d",
		report.PlansChecked, report.QuartersPaid, report.PlansMatured,
		report.PlansSkipped, len(report.FailedPlanIDs))
	for i, id := range report.FailedPlanIDs {
		log.Printf("settlement sweep: plan %d failed: %s", id, report.FailureMessages[i])
	}
}

func runReconciliation(ctx context.Context, svc reconciliation.Service) {
	report, err := svc.Reconcile(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrReconciliationMismatch) {
			log.Printf("reconciliation mismatch: variance=%s tolerance=%s report=%d",
				report.VarianceGrams, report.ToleranceGrams, report.ID)
			return
		}
		log.Printf("reconciliation failed: %v", err)
		return
	}
	log.Printf("reconciliation matched: digital=%s physical=%s in_flight=%d",
		report.DigitalGrams, report.PhysicalGrams, report.InFlightCount)
}
