package testutil

import (
	"drop-go/internal/drop"
	"drop-go/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() drop.Encryptor {
	return encryption.NewTestEncryptor()
}
