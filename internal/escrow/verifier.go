package escrow

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mkravets/blockmart/internal/ledger"
)

// LedgerVerifier checks claimed payments against the external ledger.
//
// The ledger is untrusted infrastructure: transport errors, empty responses
// and malformed blocks all verify as false, never as a propagated error, so
// transient ledger unavailability cannot abort the reservation lifecycle.
type LedgerVerifier struct {
	client ledger.Client
	logger *slog.Logger
}

// NewLedgerVerifier creates a verifier backed by the given ledger client.
func NewLedgerVerifier(client ledger.Client, logger *slog.Logger) *LedgerVerifier {
	return &LedgerVerifier{client: client, logger: logger}
}

// Verify queries exactly one block at the claimed height and tests whether
// its transfer matches the expected parties, amount and token. All of memo,
// from, to and amount must match exactly; addresses compare as raw bytes.
func (v *LedgerVerifier) Verify(ctx context.Context, payer, receiver common.Address, amount, block, token uint64) bool {
	blocks, err := v.client.QueryBlocks(ctx, block, 1)
	if err != nil {
		v.logger.Debug("ledger query failed, treating as unverified",
			"block", block, "error", err)
		return false
	}

	for _, b := range blocks {
		if b.Height != block || b.Transfer == nil {
			continue
		}
		t := b.Transfer
		if t.Memo == token && t.From == payer && t.To == receiver && t.Amount == amount {
			return true
		}
	}
	return false
}

// Compile-time assertion that LedgerVerifier implements Verifier.
var _ Verifier = (*LedgerVerifier)(nil)
