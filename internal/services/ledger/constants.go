package ledger

import (
	"time"

	"finagold/internal/models"
)

// Default configuration values
const (
	DefaultPageLimit = 50
	DefaultCacheTTL  = 5 * time.Minute
)

// BalanceCacheKey is the cache key format shared with the balance
// projector, invalidated here on every committed append.
const BalanceCacheKey = "balance:%d:%s"

var validWallets = map[string]bool{
	models.WalletLGPW:     true,
	models.WalletFGPW:     true,
	models.WalletVault:    true,
	models.WalletBNSL:     true,
	models.WalletExternal: true,
}

var validActions = map[string]bool{
	models.ActionDeposit:         true,
	models.ActionWithdrawal:      true,
	models.ActionTransferSend:    true,
	models.ActionTransferReceive: true,
	models.ActionLGPWToFGPW:      true,
	models.ActionFGPWToLGPW:      true,
	models.ActionVaultTransfer:   true,
	models.ActionBnslLock:        true,
	models.ActionBnslRelease:     true,
	models.ActionPayoutCredit:    true,
	models.ActionFeeDeduction:    true,
	models.ActionAdjustment:      true,
}
