package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkravets/blockmart/internal/testutil"
)

func TestPostgresStore_Lifecycle(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	p := &Product{
		ID:          "prod_aabbccddeeff001122334455",
		Name:        "Widget",
		Description: "A widget",
		Price:       1000,
		Seller:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Widget" || got.Price != 1000 || got.Description != "A widget" {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	got.Price = 2000
	got.UpdatedAt = time.Now().UTC()
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.IncrementSold(ctx, p.ID); err != nil {
			t.Fatalf("IncrementSold failed: %v", err)
		}
	}

	got, err = store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Price != 2000 || got.SoldCount != 3 {
		t.Errorf("expected price 2000 and soldCount 3, got %+v", got)
	}

	list, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected one product, got %d", len(list))
	}

	removed, err := store.Remove(ctx, p.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed.ID != p.ID {
		t.Errorf("Remove returned wrong product: %+v", removed)
	}
	if _, err := store.Get(ctx, p.ID); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Get after Remove: expected ErrProductNotFound, got %v", err)
	}
	if err := store.IncrementSold(ctx, p.ID); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("IncrementSold after Remove: expected ErrProductNotFound, got %v", err)
	}
}

func TestPostgresStore_EmptyDescription(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	p := &Product{
		ID:        "prod_000000000000000000000001",
		Name:      "Bare",
		Price:     1,
		Seller:    "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Description != "" {
		t.Errorf("expected empty description, got %q", got.Description)
	}
}
