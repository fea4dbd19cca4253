package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const storagePassphraseEnv = "KEYVAULT_STORE_PASSPHRASE"

const storageKeyFile = "storage.key"

// StoragePassphrase returns the passphrase that seals identity records. The
// environment wins; otherwise a random key is read from, or written to,
// dataDir/storage.key.
func StoragePassphrase(dataDir string) ([]byte, error) {
	if secret := strings.TrimSpace(os.Getenv(storagePassphraseEnv)); secret != "" {
		return []byte(secret), nil
	}
	keyPath := filepath.Join(dataDir, storageKeyFile)
	existing, err := os.ReadFile(keyPath)
	if err == nil {
		if secret := strings.TrimSpace(string(existing)); secret != "" {
			return []byte(secret), nil
		}
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	secret := base64.RawStdEncoding.EncodeToString(buf)
	if err := WriteStorageKey(dataDir, secret); err != nil {
		return nil, err
	}
	return []byte(secret), nil
}

func WriteStorageKey(dataDir, secret string) error {
	keyPath := filepath.Join(dataDir, storageKeyFile)
	if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(keyPath, []byte(secret), 0o600)
}
