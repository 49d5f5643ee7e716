package escrow

import (
	"encoding/binary"
	"hash/fnv"
	"time"
)

// GenerateToken derives the correlation token for a reservation from the
// product, the buyer and the reservation time. Deterministic and cheap: the
// same triple always yields the same token, and the token can be re-derived
// for audit. The payer echoes it in the transfer's memo field so the
// coordinator can match the off-band payment to the reservation.
//
// Zero is reserved as "no token"; the generator never returns it.
func GenerateToken(productID, buyer string, at time.Time) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(productID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(buyer))
	_, _ = h.Write([]byte{0})

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.UnixNano()))
	_, _ = h.Write(ts[:])

	token := h.Sum64()
	if token == 0 {
		return 1
	}
	return token
}
