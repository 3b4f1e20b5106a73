package drop

import "io"

// Encryptor encrypts vaulted archives. Encryption uses the public key only;
// decryption needs a passphrase to unlock the private key.
type Encryptor interface {
	// Setup generates a key pair, storing the private key encrypted with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context able to decrypt archives.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool

	// Suffix is appended to vault keys of archives produced by this encryptor.
	Suffix() string
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
