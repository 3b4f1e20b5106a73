package vault

import (
	"context"
	"fmt"

	"drop-go/internal/config"
	"drop-go/internal/drop"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config
// type. Type "none" returns a nil Vault: expired entries are deleted without
// an archive.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (drop.Vault, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		return NewS3VaultFromConfig(ctx, cfg)
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
