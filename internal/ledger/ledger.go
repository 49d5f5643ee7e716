// Package ledger provides a read-only client for the external value-transfer
// ledger.
//
// The ledger is independently operated infrastructure: Blockmart never writes
// to it. Buyers submit transfers to the ledger directly, out of band, and the
// escrow coordinator only asks "does block N contain this exact transfer?".
// The client therefore exposes a single range-query operation over blocks.
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Transfer is the payment operation carried by a ledger block.
//
// The memo field is the correlation token the payer must echo back so a
// transfer can be matched to a reservation.
type Transfer struct {
	Memo   uint64         `json:"memo"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

// Block is a single ledger block. Blocks without a transfer operation
// (mint, burn, approve) carry a nil Transfer.
type Block struct {
	Height   uint64    `json:"height"`
	Transfer *Transfer `json:"transfer,omitempty"`
}

// Client queries blocks from the external ledger.
type Client interface {
	// QueryBlocks returns up to length blocks starting at height start.
	// A block height past the chain tip yields an empty slice, not an error.
	QueryBlocks(ctx context.Context, start, length uint64) ([]Block, error)
}
