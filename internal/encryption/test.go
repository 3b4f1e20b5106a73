package encryption

import (
	"bytes"
	"fmt"
	"io"

	"drop-go/internal/drop"
)

// TestSuffix is appended to vault keys of archives sealed by TestEncryptor.
const TestSuffix = ".test"

// testHeader marks output of TestEncryptor.
var testHeader = []byte("DROPENC\x00")

// testMask is XORed over every payload byte so sealed archives never contain
// their plaintext.
const testMask = 0x5a

// TestEncryptor is a deterministic, reversible stand-in for AgeEncryptor.
// It needs no keys and performs no real cryptography.
type TestEncryptor struct{}

var _ drop.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(string) error { return nil }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, maskReader{r}); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(string) (drop.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

func (e *TestEncryptor) Suffix() string { return TestSuffix }

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

var _ drop.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, maskReader{r}); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

type maskReader struct {
	r io.Reader
}

func (m maskReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	for i := 0; i < n; i++ {
		p[i] ^= testMask
	}
	return n, err
}
