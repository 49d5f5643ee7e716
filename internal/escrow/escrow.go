// Package escrow implements the purchase coordination core.
//
// Flow:
//  1. Buyer reserves a product → pending reservation keyed by a correlation token
//  2. Buyer pays the seller on the external ledger, echoing the token in the memo
//  3. Buyer calls completion with the claimed block → transfer verified on-ledger
//  4. Reservation atomically promoted to an immutable completed order
//  5. No payment within the window → reservation expires, no trace kept
//
// Per token the state machine is NONE → RESERVED → {COMPLETED | EXPIRED},
// terminal. Completion and expiry race on the pending store's Remove; whichever
// removes first wins, the loser observes an empty lookup.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mkravets/blockmart/internal/idgen"
	"github.com/mkravets/blockmart/internal/metrics"
	"github.com/mkravets/blockmart/internal/traces"
	"github.com/mkravets/blockmart/internal/validation"
)

var (
	ErrNotFound       = errors.New("escrow: not found")
	ErrInvalidPayload = errors.New("escrow: invalid payload")
	ErrTokenCollision = errors.New("escrow: correlation token collides with a live reservation")
)

// Status represents the state of a reservation or order.
type Status string

const (
	StatusReserved  Status = "reserved"
	StatusCompleted Status = "completed"
)

// DefaultReservationPeriod is the payment window when none is configured.
const DefaultReservationPeriod = 120 * time.Second

// Reservation is a time-bounded claim on a product pending payment
// confirmation. The price and seller are snapshots taken at reservation time;
// a later reprice of the product does not affect a live reservation.
type Reservation struct {
	Token     uint64    `json:"token,string"`
	ProductID string    `json:"productId"`
	Price     uint64    `json:"price"`
	Seller    string    `json:"seller"`
	Buyer     string    `json:"buyer"`
	Status    Status    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Order is a settled purchase. Append-only; there is no update or delete path.
type Order struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"productId"`
	Price        uint64    `json:"price"`
	Seller       string    `json:"seller"`
	Buyer        string    `json:"buyer"`
	Status       Status    `json:"status"`
	SettledBlock uint64    `json:"settledBlock"`
	Token        uint64    `json:"token,string"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PendingStore persists live reservations keyed by correlation token.
// Remove must be atomic: at most one caller observes the reservation, all
// others get ErrNotFound. This is the primitive the completion/expiry race
// is resolved on.
type PendingStore interface {
	Insert(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, token uint64) (*Reservation, error)
	Remove(ctx context.Context, token uint64) (*Reservation, error)
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*Reservation, error)
	Count(ctx context.Context) (int, error)
}

// OrderStore persists completed orders.
type OrderStore interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByBuyer(ctx context.Context, buyer string, limit int) ([]*Order, error)
}

// ProductCatalog abstracts catalog operations so escrow doesn't import
// catalog. Implementations return ErrNotFound when no such product exists.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*ProductInfo, error)
	IncrementSold(ctx context.Context, id string) error
}

// ProductInfo is the catalog snapshot a reservation is taken against.
type ProductInfo struct {
	ID     string
	Price  uint64
	Seller string
}

// Verifier tests whether a specific block of the external ledger contains a
// transfer matching the expected payer, receiver, amount, and token.
type Verifier interface {
	Verify(ctx context.Context, payer, receiver common.Address, amount, block, token uint64) bool
}

// Scheduler arms a one-shot expiry callback per reservation.
type Scheduler interface {
	Arm(token uint64, delay time.Duration)
}

// CompleteRequest contains the parameters for completing a purchase.
type CompleteRequest struct {
	SellerAddr string `json:"sellerAddr" binding:"required"`
	BuyerAddr  string `json:"buyerAddr" binding:"required"`
	ProductID  string `json:"productId" binding:"required"`
	Amount     uint64 `json:"amount" binding:"required"`
	Block      uint64 `json:"block"`
	Token      uint64 `json:"token,string" binding:"required"`
}

// Coordinator orchestrates the reservation lifecycle.
type Coordinator struct {
	products  ProductCatalog
	pending   PendingStore
	orders    OrderStore
	verifier  Verifier
	scheduler Scheduler
	period    time.Duration
	logger    *slog.Logger
}

// NewCoordinator creates an escrow coordinator. The default scheduler arms
// in-process one-shot timers; pair it with a Timer sweep to cover restarts.
func NewCoordinator(products ProductCatalog, pending PendingStore, orders OrderStore, verifier Verifier, period time.Duration, logger *slog.Logger) *Coordinator {
	if period <= 0 {
		period = DefaultReservationPeriod
	}
	c := &Coordinator{
		products: products,
		pending:  pending,
		orders:   orders,
		verifier: verifier,
		period:   period,
		logger:   logger,
	}
	c.scheduler = NewTimerScheduler(func(token uint64) {
		c.Expire(context.Background(), token)
	})
	return c
}

// WithScheduler replaces the expiry scheduler. Used by tests to control time.
func (c *Coordinator) WithScheduler(s Scheduler) *Coordinator {
	c.scheduler = s
	return c
}

// ReservationPeriod returns the configured payment window.
func (c *Coordinator) ReservationPeriod() time.Duration {
	return c.period
}

// Close drains the default scheduler's in-process timers. Reservations they
// would have expired stay in the pending store for the sweep after restart.
func (c *Coordinator) Close() {
	if s, ok := c.scheduler.(*TimerScheduler); ok {
		s.Stop()
	}
}

// CreateReservation snapshots the product's price and seller, derives the
// correlation token, writes the pending reservation and arms its expiry.
func (c *Coordinator) CreateReservation(ctx context.Context, productID, buyerAddr string) (*Reservation, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.CreateReservation",
		traces.ProductID(productID), traces.BuyerAddr(buyerAddr))
	defer span.End()

	if !validation.IsValidProductID(productID) {
		return nil, fmt.Errorf("%w: malformed product id", ErrInvalidPayload)
	}
	if !validation.IsValidAddress(buyerAddr) {
		return nil, fmt.Errorf("%w: malformed buyer address", ErrInvalidPayload)
	}
	buyerAddr = validation.SanitizeAddress(buyerAddr)

	product, err := c.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	r := &Reservation{
		Token:     GenerateToken(productID, buyerAddr, now),
		ProductID: product.ID,
		Price:     product.Price,
		Seller:    product.Seller,
		Buyer:     buyerAddr,
		Status:    StatusReserved,
		ExpiresAt: now.Add(c.period),
		CreatedAt: now,
	}

	if err := c.pending.Insert(ctx, r); err != nil {
		return nil, err
	}
	c.scheduler.Arm(r.Token, c.period)

	metrics.ReservationsCreatedTotal.Inc()
	metrics.PendingReservations.Inc()
	c.logger.Info("reservation created",
		"token", r.Token,
		"productId", r.ProductID,
		"buyer", r.Buyer,
		"price", r.Price,
		"expiresAt", r.ExpiresAt,
	)
	return r, nil
}

// Expire deletes the pending reservation for token, if any. An absent key
// means completion already consumed it (or it was never created); that is a
// logged no-op, not an error. No audit record is kept for expiry.
func (c *Coordinator) Expire(ctx context.Context, token uint64) {
	r, err := c.pending.Remove(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Debug("expiry no-op, reservation already consumed", "token", token)
			return
		}
		c.logger.Warn("failed to expire reservation", "token", token, "error", err)
		return
	}

	metrics.ReservationsExpiredTotal.Inc()
	metrics.PendingReservations.Dec()
	c.logger.Info("reservation expired",
		"token", token,
		"productId", r.ProductID,
		"buyer", r.Buyer,
	)
}

// CompletePurchase verifies the claimed transfer on the external ledger and,
// on success, atomically promotes the reservation to a completed order and
// bumps the product's sold counter.
//
// An unverifiable payment is ErrNotFound for this specific block/token pair;
// the caller may retry with a later block while the reservation lives.
func (c *Coordinator) CompletePurchase(ctx context.Context, req CompleteRequest) (*Order, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.CompletePurchase",
		traces.ProductID(req.ProductID), traces.BuyerAddr(req.BuyerAddr), traces.SellerAddr(req.SellerAddr),
		traces.Token(req.Token), traces.Block(req.Block))
	defer span.End()

	seller, buyer, err := parseParties(req.SellerAddr, req.BuyerAddr)
	if err != nil {
		return nil, err
	}
	if !validation.IsValidProductID(req.ProductID) {
		return nil, fmt.Errorf("%w: malformed product id", ErrInvalidPayload)
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidPayload)
	}
	if req.Token == 0 {
		return nil, fmt.Errorf("%w: missing correlation token", ErrInvalidPayload)
	}

	if !c.verifier.Verify(ctx, buyer, seller, req.Amount, req.Block, req.Token) {
		metrics.PaymentVerificationsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: no matching transfer in block %d", ErrNotFound, req.Block)
	}
	metrics.PaymentVerificationsTotal.WithLabelValues("success").Inc()

	r, err := c.pending.Get(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	// The reservation binds the parties: only a transfer from the recorded
	// buyer to the recorded seller settles it. Knowing the token is not enough.
	if r.ProductID != req.ProductID || r.Price != req.Amount ||
		r.Buyer != validation.SanitizeAddress(req.BuyerAddr) ||
		r.Seller != validation.SanitizeAddress(req.SellerAddr) {
		return nil, fmt.Errorf("%w: reservation does not match purchase", ErrNotFound)
	}

	// The race with expiry is decided here: first Remove wins.
	r, err = c.pending.Remove(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	metrics.PendingReservations.Dec()

	order := &Order{
		ID:           idgen.NewOrderID(),
		ProductID:    r.ProductID,
		Price:        r.Price,
		Seller:       r.Seller,
		Buyer:        validation.SanitizeAddress(req.BuyerAddr),
		Status:       StatusCompleted,
		SettledBlock: req.Block,
		Token:        r.Token,
		CreatedAt:    time.Now(),
	}

	if err := c.orders.Insert(ctx, order); err != nil {
		// The reservation is already consumed; losing the order record here
		// needs manual reconciliation against the ledger.
		c.logger.Error("CRITICAL: reservation consumed but order not persisted",
			"token", r.Token, "productId", r.ProductID, "block", req.Block, "error", err)
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	if err := c.products.IncrementSold(ctx, r.ProductID); err != nil {
		// A product missing at this point means the catalog and the pending
		// store diverged. The order stands; the counter needs manual repair.
		c.logger.Error("failed to increment sold counter",
			"productId", r.ProductID, "orderId", order.ID, "error", err)
	}

	metrics.OrdersCompletedTotal.Inc()
	c.logger.Info("purchase completed",
		"orderId", order.ID,
		"token", order.Token,
		"productId", order.ProductID,
		"buyer", order.Buyer,
		"settledBlock", order.SettledBlock,
	)
	return order, nil
}

// VerifyPayment is a read-only probe of the ledger; it checks the same
// predicate completion does without touching any store.
func (c *Coordinator) VerifyPayment(ctx context.Context, payerAddr, receiverAddr string, amount, block, token uint64) (bool, error) {
	if !validation.IsValidAddress(payerAddr) {
		return false, fmt.Errorf("%w: malformed payer address", ErrInvalidPayload)
	}
	if !validation.IsValidAddress(receiverAddr) {
		return false, fmt.Errorf("%w: malformed receiver address", ErrInvalidPayload)
	}

	ok := c.verifier.Verify(ctx, common.HexToAddress(payerAddr), common.HexToAddress(receiverAddr), amount, block, token)
	result := "failure"
	if ok {
		result = "success"
	}
	metrics.PaymentVerificationsTotal.WithLabelValues(result).Inc()
	return ok, nil
}

// GetReservation returns the live reservation for token, if any.
func (c *Coordinator) GetReservation(ctx context.Context, token uint64) (*Reservation, error) {
	return c.pending.Get(ctx, token)
}

// ListOrdersByBuyer returns completed orders for a buyer address.
func (c *Coordinator) ListOrdersByBuyer(ctx context.Context, buyerAddr string, limit int) ([]*Order, error) {
	if !validation.IsValidAddress(buyerAddr) {
		return nil, fmt.Errorf("%w: malformed buyer address", ErrInvalidPayload)
	}
	if limit <= 0 {
		limit = 50
	}
	return c.orders.ListByBuyer(ctx, validation.SanitizeAddress(buyerAddr), limit)
}

func parseParties(sellerAddr, buyerAddr string) (seller, buyer common.Address, err error) {
	if !validation.IsValidAddress(sellerAddr) {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: malformed seller address", ErrInvalidPayload)
	}
	if !validation.IsValidAddress(buyerAddr) {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: malformed buyer address", ErrInvalidPayload)
	}
	return common.HexToAddress(sellerAddr), common.HexToAddress(buyerAddr), nil
}
