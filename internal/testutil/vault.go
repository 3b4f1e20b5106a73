package testutil

import (
	"drop-go/internal/drop"
	"drop-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() drop.Vault {
	return vault.NewMemoryVault("test-vault")
}
