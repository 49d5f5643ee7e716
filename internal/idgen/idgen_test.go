package idgen

import (
	"regexp"
	"testing"
)

func TestNewProductID(t *testing.T) {
	id := NewProductID()
	if !regexp.MustCompile(`^prod_[a-f0-9]{24}$`).MatchString(id) {
		t.Errorf("unexpected id format: %s", id)
	}
}

func TestNewOrderID(t *testing.T) {
	id := NewOrderID()
	if !regexp.MustCompile(`^ord_[a-f0-9]{24}$`).MatchString(id) {
		t.Errorf("unexpected id format: %s", id)
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewOrderID()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()
	if !regexp.MustCompile(`^[a-f0-9]{32}$`).MatchString(id) {
		t.Errorf("unexpected request id format: %s", id)
	}
}
