package testutil

import (
	"rembes-go/internal/encryption"
	"rembes-go/internal/rembes"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() rembes.Encryptor {
	return encryption.NewTestEncryptor()
}
