// Package catalog implements the product catalog.
//
// Products are plain keyed records owned by a seller. Sellers create, reprice
// and delist their own products; the only other writer is the escrow
// coordinator, which bumps the sold counter when a purchase settles.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkravets/blockmart/internal/idgen"
	"github.com/mkravets/blockmart/internal/validation"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrProductExists   = errors.New("catalog: product already exists")
	ErrNotOwner        = errors.New("catalog: caller does not own this product")
	ErrInvalidProduct  = errors.New("catalog: invalid product")
)

// Product is a sellable listing.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       uint64    `json:"price"`     // Ledger base units
	SoldCount   uint64    `json:"soldCount"` // Only ever increases, via completed orders
	Seller      string    `json:"seller"`    // Owning seller's account address
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store persists products. Single-key operations are atomic; no cross-key
// transactions are assumed by callers.
type Store interface {
	Get(ctx context.Context, id string) (*Product, error)
	Insert(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Remove(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, limit int) ([]*Product, error)
	// IncrementSold atomically bumps the product's sold counter by one.
	IncrementSold(ctx context.Context, id string) error
}

// CreateRequest contains the parameters for listing a product.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       uint64 `json:"price" binding:"required"`
	SellerAddr  string `json:"sellerAddr" binding:"required"`
}

// Service implements catalog business logic with owner checks.
type Service struct {
	store Store
}

// NewService creates a new catalog service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create lists a new product for the given seller.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if !validation.IsValidAddress(req.SellerAddr) {
		return nil, fmt.Errorf("%w: seller address", ErrInvalidProduct)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if req.Price == 0 {
		return nil, fmt.Errorf("%w: price must be greater than zero", ErrInvalidProduct)
	}

	now := time.Now()
	p := &Product{
		ID:          idgen.NewProductID(),
		Name:        validation.SanitizeString(req.Name, 200),
		Description: validation.SanitizeString(req.Description, validation.MaxStringLength),
		Price:       req.Price,
		Seller:      validation.SanitizeAddress(req.SellerAddr),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Insert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a product by ID.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.store.Get(ctx, id)
}

// List returns up to limit products.
func (s *Service) List(ctx context.Context, limit int) ([]*Product, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.List(ctx, limit)
}

// UpdatePrice changes a product's price. Only the owning seller may reprice.
// In-flight reservations are unaffected: they carry a price snapshot.
func (s *Service) UpdatePrice(ctx context.Context, id, callerAddr string, price uint64) (*Product, error) {
	if price == 0 {
		return nil, fmt.Errorf("%w: price must be greater than zero", ErrInvalidProduct)
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(callerAddr, p.Seller) {
		return nil, ErrNotOwner
	}

	p.Price = price
	p.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete delists a product. Only the owning seller may delete.
func (s *Service) Delete(ctx context.Context, id, callerAddr string) (*Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(callerAddr, p.Seller) {
		return nil, ErrNotOwner
	}
	return s.store.Remove(ctx, id)
}

// IncrementSold bumps a product's sold counter. Reserved for the escrow
// coordinator on purchase completion; there is no other legal writer.
func (s *Service) IncrementSold(ctx context.Context, id string) error {
	return s.store.IncrementSold(ctx, id)
}
