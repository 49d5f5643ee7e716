package escrow

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mkravets/blockmart/internal/validation"
)

// Handler provides HTTP endpoints for the escrow lifecycle.
type Handler struct {
	coordinator *Coordinator
}

// NewHandler creates a new escrow handler.
func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// RegisterRoutes sets up escrow routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/products/:id/reservations", h.CreateReservation)
	r.GET("/reservations/:token", h.GetReservation)
	r.POST("/orders", h.CompletePurchase)
	r.GET("/payments/verify", h.VerifyPayment)
	r.GET("/buyers/:address/orders", h.ListOrdersByBuyer)
}

// CreateReservation handles POST /v1/products/:id/reservations
func (h *Handler) CreateReservation(c *gin.Context) {
	productID := c.Param("id")

	var req struct {
		BuyerAddr string `json:"buyerAddr" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "buyerAddr is required",
		})
		return
	}

	reservation, err := h.coordinator.CreateReservation(c.Request.Context(), productID, req.BuyerAddr)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"reservation": reservation})
}

// GetReservation handles GET /v1/reservations/:token
func (h *Handler) GetReservation(c *gin.Context) {
	token, err := strconv.ParseUint(c.Param("token"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "token must be an unsigned integer",
		})
		return
	}

	reservation, err := h.coordinator.GetReservation(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// CompletePurchase handles POST /v1/orders
func (h *Handler) CompletePurchase(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "sellerAddr, buyerAddr, productId, amount and token are required",
		})
		return
	}

	order, err := h.coordinator.CompletePurchase(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// VerifyPayment handles GET /v1/payments/verify?payer=&receiver=&amount=&block=&token=
func (h *Handler) VerifyPayment(c *gin.Context) {
	amount, err1 := strconv.ParseUint(c.Query("amount"), 10, 64)
	block, err2 := strconv.ParseUint(c.Query("block"), 10, 64)
	token, err3 := strconv.ParseUint(c.Query("token"), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "amount, block and token must be unsigned integers",
		})
		return
	}

	verified, err := h.coordinator.VerifyPayment(c.Request.Context(),
		c.Query("payer"), c.Query("receiver"), amount, block, token)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": verified})
}

// ListOrdersByBuyer handles GET /v1/buyers/:address/orders
func (h *Handler) ListOrdersByBuyer(c *gin.Context) {
	addr := c.Param("address")
	if !validation.IsValidAddress(addr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "address must be a valid account address",
		})
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	orders, err := h.coordinator.ListOrdersByBuyer(c.Request.Context(), addr, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, ErrInvalidPayload):
		status = http.StatusBadRequest
		code = "validation_error"
	case errors.Is(err, ErrTokenCollision):
		status = http.StatusConflict
		code = "token_collision"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
