// Package idgen mints the identifiers Blockmart hands out. Products and
// orders share the same shape, a type prefix followed by 24 lowercase hex
// chars; request ids are bare 32-char hex. All randomness is crypto/rand.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// Identifier prefixes.
const (
	ProductPrefix = "prod_"
	OrderPrefix   = "ord_"
)

const (
	idBytes      = 12
	requestBytes = 16
)

// NewProductID mints a product identifier (prod_ + 24 hex chars).
func NewProductID() string {
	return ProductPrefix + randHex(idBytes)
}

// NewOrderID mints an order identifier (ord_ + 24 hex chars).
func NewOrderID() string {
	return OrderPrefix + randHex(idBytes)
}

// NewRequestID mints an opaque id for the X-Request-ID header.
func NewRequestID() string {
	return randHex(requestBytes)
}

func randHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
