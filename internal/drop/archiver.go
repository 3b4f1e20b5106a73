package drop

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"
)

// Archiver saves an entry somewhere before the sweeper deletes it.
type Archiver interface {
	Archive(ctx context.Context, entry EntryInfo, now time.Time) (string, error)
}

// VaultArchiver zips an entry, optionally encrypts it, and stores it in a Vault
// under "<YYYYMMDD>/<name>.zip[suffix]".
type VaultArchiver struct {
	storage   Storage
	vault     Vault
	encryptor Encryptor // nil stores plaintext archives
}

// NewVaultArchiver creates an archiver writing to vault. encryptor may be nil.
func NewVaultArchiver(storage Storage, vault Vault, encryptor Encryptor) *VaultArchiver {
	return &VaultArchiver{storage: storage, vault: vault, encryptor: encryptor}
}

// ArchiveKey returns the vault key for an entry archived at now.
func ArchiveKey(name string, now time.Time, suffix string) string {
	return path.Join(now.Format("20060102"), name+".zip"+suffix)
}

// Archive stores entry in the vault and returns its key.
func (a *VaultArchiver) Archive(ctx context.Context, entry EntryInfo, now time.Time) (string, error) {
	var zipped bytes.Buffer
	if err := PackFile(a.storage, entry.Name, &zipped); err != nil {
		return "", fmt.Errorf("packing %s: %w", entry.Name, err)
	}

	payload := &zipped
	suffix := ""
	if a.encryptor != nil {
		var sealed bytes.Buffer
		if err := a.encryptor.Encrypt(&zipped, &sealed); err != nil {
			return "", fmt.Errorf("encrypting %s: %w", entry.Name, err)
		}
		payload = &sealed
		suffix = a.encryptor.Suffix()
	}

	key := ArchiveKey(entry.Name, now, suffix)
	if err := a.vault.Put(ctx, key, payload, int64(payload.Len())); err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}
	return key, nil
}
