package securestore

import (
	"os"
	"path/filepath"
)

// ReadSealedFile reads and opens a file written by WriteSealedFile.
func ReadSealedFile(path string, passphrase []byte) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Open(passphrase, raw)
}

// WriteSealedFile seals payload and writes it with owner-only permissions.
func WriteSealedFile(path string, passphrase, payload []byte, params KDFParams) error {
	sealed, err := Seal(passphrase, payload, params)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, sealed, 0o600)
}
