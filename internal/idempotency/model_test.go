package idempotency

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid uuid-like key", "550e8400-e29b-41d4-a716-446655440000", nil},
		{"valid at max length", strings.Repeat("a", MaxKeyLength), nil},
		{"empty key", "", ErrInvalidKey},
		{"too long", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); err != tt.wantErr {
				t.Errorf("ValidateKey() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeResponseHash(t *testing.T) {
	h1 := ComputeResponseHash(`{"user_id":"u1"}`)
	h2 := ComputeResponseHash(`{"user_id":"u1"}`)
	h3 := ComputeResponseHash(`{"user_id":"u2"}`)

	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 != h2 {
		t.Error("same body produced different hashes")
	}
	if h1 == h3 {
		t.Error("different bodies produced the same hash")
	}
}
