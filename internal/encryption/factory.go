package encryption

import (
	"fmt"

	"drop-go/internal/config"
	"drop-go/internal/drop"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" returns a nil Encryptor: archives are stored unencrypted.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (drop.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
