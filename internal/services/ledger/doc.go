/*
Package ledger implements the append-only gold ledger, the source of
truth for every wallet balance on the platform.

All entries sharing a transaction ID commit atomically: either every leg
is durably written or none are. Balances are re-validated against
committed state inside the same database transaction, under per-wallet
advisory locks, so two concurrent withdrawals can never jointly overdraw
a wallet. Each committed entry carries a balance snapshot and an event
hash chained to the previous entry in its wallet, making history
tamper-evident.

Usage:

	svc := ledger.NewService(repo, cache, ledger.Config{}, nil)

	entries, err := svc.AppendEntries(ctx, txnID, []ledger.EntryDraft{
	    {UserID: 7, Action: models.ActionTransferSend, Wallet: models.WalletLGPW, ...},
	    {UserID: 9, Action: models.ActionTransferReceive, Wallet: models.WalletLGPW, ...},
	})

Error Handling:

AppendEntries returns the stable error kinds from internal/errors:
  - ErrInsufficientBalance: a leg would drive a wallet negative
  - ErrConcurrentModification: a concurrent writer won the race; retry
  - ErrInvalidEntry: malformed amount, unknown wallet, or an internal
    group that does not conserve gold
*/
package ledger
