package user

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "secret1" {
		t.Fatal("hash equals the plain password")
	}
	if err := h.Compare(hash, "secret1"); err != nil {
		t.Errorf("Compare with correct password: %v", err)
	}
	if err := h.Compare(hash, "secret2"); err == nil {
		t.Error("Compare with wrong password should fail")
	}
}

func TestNewBcryptHasher_InvalidCost(t *testing.T) {
	for _, cost := range []int{0, -1, bcrypt.MaxCost + 1} {
		h := NewBcryptHasher(cost).(bcryptHasher)
		if h.cost != bcrypt.DefaultCost {
			t.Errorf("cost %d: got %d; want %d", cost, h.cost, bcrypt.DefaultCost)
		}
	}
}
