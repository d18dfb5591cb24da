package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"finagold/internal/models"
)

// eventHash derives the tamper-evidence hash for an entry from its
// content plus the previous hash in the same wallet's chain. The first
// entry of a chain uses an empty previous hash.
//
// Inputs are canonicalized to what the database hands back: decimals
// rendered at column scale and the timestamp truncated to microseconds,
// so recomputing the hash over a stored entry matches the hash computed
// at append time.
func eventHash(prev string, e *models.LedgerEntry) string {
	var b strings.Builder
	b.WriteString(prev)
	b.WriteByte('|')
	b.WriteString(e.TransactionID)
	b.WriteByte('|')
	b.WriteString(e.Action)
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(uint64(e.UserID), 10))
	b.WriteByte('|')
	b.WriteString(e.Wallet)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(e.WalletSeq, 10))
	b.WriteByte('|')
	b.WriteString(e.FromWallet)
	b.WriteByte('|')
	b.WriteString(e.ToWallet)
	b.WriteByte('|')
	b.WriteString(e.GoldGrams.StringFixed(models.GramPrecision))
	b.WriteByte('|')
	b.WriteString(e.ValueUSD.StringFixed(models.GramPrecision))
	b.WriteByte('|')
	b.WriteString(e.GoldPriceUSD.StringFixed(models.GramPrecision))
	b.WriteByte('|')
	b.WriteString(e.BalanceAfter.StringFixed(models.GramPrecision))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(e.CreatedAt.Truncate(time.Microsecond).UnixNano(), 10))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
