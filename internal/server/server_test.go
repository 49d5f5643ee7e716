package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/blockmart/internal/config"
	"github.com/mkravets/blockmart/internal/escrow"
	"github.com/mkravets/blockmart/internal/ledger"
)

const (
	buyerAddr  = "0x1111111111111111111111111111111111111111"
	sellerAddr = "0x2222222222222222222222222222222222222222"
)

// stubLedger serves canned blocks in place of the external gateway.
type stubLedger struct {
	blocks []ledger.Block
}

func (s *stubLedger) QueryBlocks(_ context.Context, start, length uint64) ([]ledger.Block, error) {
	var out []ledger.Block
	for _, b := range s.blocks {
		if b.Height >= start && b.Height < start+length {
			out = append(out, b)
		}
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "development",
		LogLevel:          "error",
		LedgerURL:         "http://ledger.invalid",
		LedgerTimeout:     time.Second,
		ReservationPeriod: time.Minute,
		SweepInterval:     time.Minute,
		RateLimitRPM:      10000,
	}
}

func newTestServer(t *testing.T, stub *stubLedger) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(testConfig(), WithLogger(logger), WithLedgerClient(stub))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.rateLimiter.Stop()
		s.coordinator.Close()
	})
	return s
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServer_HealthEndpoints(t *testing.T) {
	s := newTestServer(t, &stubLedger{})

	w := doJSON(s.Router(), "GET", "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Not ready until Run marks it so.
	w = doJSON(s.Router(), "GET", "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(s.Router(), "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ledger":"healthy"`)

	w = doJSON(s.Router(), "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_PurchaseFlow(t *testing.T) {
	stub := &stubLedger{}
	s := newTestServer(t, stub)
	r := s.Router()

	// Seller lists a product.
	w := doJSON(r, "POST", "/v1/products", gin.H{
		"name":       "Widget",
		"price":      1000,
		"sellerAddr": sellerAddr,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Product struct {
			ID string `json:"id"`
		} `json:"product"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	productID := created.Product.ID

	// Buyer reserves it.
	w = doJSON(r, "POST", "/v1/products/"+productID+"/reservations", gin.H{
		"buyerAddr": buyerAddr,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var reserved struct {
		Reservation escrow.Reservation `json:"reservation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reserved))
	token := reserved.Reservation.Token

	// Payment lands on the ledger.
	stub.blocks = []ledger.Block{{
		Height: 42,
		Transfer: &ledger.Transfer{
			Memo:   token,
			From:   common.HexToAddress(buyerAddr),
			To:     common.HexToAddress(sellerAddr),
			Amount: 1000,
		},
	}}

	// Buyer completes the purchase.
	w = doJSON(r, "POST", "/v1/orders", gin.H{
		"sellerAddr": sellerAddr,
		"buyerAddr":  buyerAddr,
		"productId":  productID,
		"amount":     1000,
		"block":      42,
		"token":      fmt.Sprintf("%d", token),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var completed struct {
		Order escrow.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &completed))
	assert.Equal(t, uint64(42), completed.Order.SettledBlock)

	// The product's sold counter moved.
	w = doJSON(r, "GET", "/v1/products/"+productID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"soldCount":1`)

	// The order shows up for the buyer.
	w = doJSON(r, "GET", "/v1/buyers/"+buyerAddr+"/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), completed.Order.ID)
}

func TestServer_RequestIDHeader(t *testing.T) {
	s := newTestServer(t, &stubLedger{})

	w := doJSON(s.Router(), "GET", "/api", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/api", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestServer_UnknownProductReservation(t *testing.T) {
	s := newTestServer(t, &stubLedger{})

	w := doJSON(s.Router(), "POST", "/v1/products/prod_000000000000000000000000/reservations",
		gin.H{"buyerAddr": buyerAddr})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
