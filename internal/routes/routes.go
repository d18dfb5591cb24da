// Package routes defines the API routing configuration.
// It wires repositories into services, services into handlers, and
// handlers onto their routes.
package routes

import (
	"finagold/internal/config"
	"finagold/internal/handlers"
	"finagold/internal/repositories"
	"finagold/internal/services/balance"
	"finagold/internal/services/ledger"
	"finagold/internal/services/pricing"
	"finagold/internal/services/reconciliation"
	"finagold/internal/services/settlement"
	"finagold/internal/services/transfer"
	"finagold/internal/services/workflow"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes.
// It groups routes by functionality.
func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize repositories
	ledgerRepo := repositories.NewLedgerRepository(db)
	planRepo := repositories.NewPlanRepository(db)
	workflowRepo := repositories.NewWorkflowRepository(db)
	reconRepo := repositories.NewReconciliationRepository(db)
	cacheRepo := repositories.NewRedisCacheRepository(repositories.RedisClient)

	// Initialize services in dependency order
	priceFeed := pricing.NewStaticFeed(config.GetDecimalEnv("GOLD_PRICE_USD", "1000"))
	workflowService := workflow.NewService(workflowRepo, workflow.NewRegistry())
	ledgerService := ledger.NewService(ledgerRepo, cacheRepo, ledger.Config{}, nil)
	balanceService := balance.NewService(ledgerRepo, cacheRepo, 0)
	transferService := transfer.NewService(ledgerService, priceFeed, workflowService)
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

	// Initialize handlers
	balanceHandler := handlers.NewBalanceHandler(balanceService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	operationsHandler := handlers.NewOperationsHandler(transferService)
	planHandler := handlers.NewPlanHandler(settlementService)
	workflowHandler := handlers.NewWorkflowHandler(workflowService)
	reconHandler := handlers.NewReconciliationHandler(reconService)

	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api")

	// Balance and history
	users := api.Group("/users/:userId")
	users.Get("/balances", balanceHandler.GetAllBalances)
	users.Get("/balances/:wallet", balanceHandler.GetBalance)
	users.Get("/wallets/:wallet/entries", ledgerHandler.GetWalletHistory)
	users.Get("/wallets/:wallet/verify", ledgerHandler.VerifyChain)
	users.Get("/entries", ledgerHandler.GetUserEntries)
	users.Get("/plans", planHandler.GetUserPlans)

	// Wallet operations
	ops := api.Group("/operations")
	ops.Post("/deposits", operationsHandler.ConfirmDeposit)
	ops.Post("/withdrawals", operationsHandler.Withdraw)
	ops.Post("/transfers", operationsHandler.Transfer)
	ops.Post("/conversions", operationsHandler.Convert)
	ops.Post("/vault-transfers", operationsHandler.VaultTransfer)
	ops.Post("/vault-transfers/custody-confirmation", operationsHandler.ConfirmVaultCustody)

	api.Get("/transactions/:transactionId", ledgerHandler.GetTransaction)

	// BNSL plans
	plans := api.Group("/plans")
	plans.Post("/", planHandler.Enroll)
	plans.Get("/:planId", planHandler.GetPlan)
	plans.Get("/:planId/termination-quote", planHandler.PreviewTermination)
	plans.Post("/:planId/terminate", planHandler.Terminate)

	// Workflow audits
	api.Get("/workflows/audits", workflowHandler.ListAudits)
	api.Get("/workflows/:flowInstanceId/audit", workflowHandler.AuditFlow)

	// Operational endpoints, fronted by the internal gateway
	admin := api.Group("/admin")
	admin.Post("/sweeps/quarterly", planHandler.RunSweep)
	admin.Get("/entries", ledgerHandler.GetEntriesInRange)
	admin.Post("/reconciliation/run", reconHandler.Run)
	admin.Get("/reconciliation/latest", reconHandler.Latest)
	admin.Get("/reconciliation/history", reconHandler.History)
}
