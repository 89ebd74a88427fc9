package user

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	digest, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if digest == "password123" {
		t.Fatal("digest must not equal the plain password")
	}
	if !h.Compare(digest, "password123") {
		t.Error("Compare should succeed for the correct password")
	}
	if h.Compare(digest, "wrong-password") {
		t.Error("Compare should fail for a wrong password")
	}
}

func TestNewBcryptHasher_OutOfRangeCostFallsBackToDefault(t *testing.T) {
	if h := NewBcryptHasher(0); h.cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, bcrypt.DefaultCost)
	}
	if h := NewBcryptHasher(bcrypt.MaxCost + 1); h.cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, bcrypt.DefaultCost)
	}
	if h := NewBcryptHasher(bcrypt.MinCost); h.cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", h.cost, bcrypt.MinCost)
	}
}
