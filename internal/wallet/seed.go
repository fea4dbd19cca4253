// Package wallet owns HD wallet seeds. A seed is always persisted in closed
// (encrypted) form and is held open in memory only between Unlock and Lock.
package wallet

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"

	"github.com/dashpay/dash-evo-tool-sub003/internal/hdpath"
	"github.com/dashpay/dash-evo-tool-sub003/internal/metrics"
	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/internal/securestore"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

// SeedSize is the length of a BIP39 seed.
const SeedSize = 64

type SeedHash = hdpath.SeedHash

var (
	ErrWrongPasswordOrCorrupt = errors.New("wrong password or corrupted wallet seed")
	ErrSeedNotOpen            = errors.New("wallet seed is not open")
	ErrSeedNotFound           = errors.New("wallet seed not found")
	ErrInvalidSeed            = errors.New("wallet seed must be 64 bytes")
	ErrPasswordRequired       = errors.New("password is required")
	ErrInvalidMnemonic        = errors.New("invalid mnemonic")
	ErrUnlockThrottled        = errors.New("wallet unlock attempts are temporarily throttled")
)

// ClosedSeed is the persisted form of a wallet seed.
type ClosedSeed struct {
	SeedHash     SeedHash              `json:"seed_hash"`
	Envelope     *securestore.Envelope `json:"envelope"`
	PasswordHint string                `json:"password_hint,omitempty"`
}

type Seed struct {
	mu     sync.RWMutex
	closed ClosedSeed
	open   []byte
}

// NewSeed encrypts raw under password and returns the seed in open state.
// raw is copied; the caller keeps ownership of it.
func NewSeed(raw, password []byte, hint string, params securestore.KDFParams) (*Seed, error) {
	if len(raw) != SeedSize {
		return nil, ErrInvalidSeed
	}
	if len(password) == 0 {
		return nil, ErrPasswordRequired
	}
	env, err := securestore.EncryptEnvelope(password, raw, params)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encrypt wallet seed")
	}
	open := make([]byte, SeedSize)
	copy(open, raw)
	metrics.SeedOpened()
	return &Seed{
		closed: ClosedSeed{
			SeedHash:     hdpath.HashSeed(raw),
			Envelope:     env,
			PasswordHint: strings.TrimSpace(hint),
		},
		open: open,
	}, nil
}

// NewSeedFromMnemonic derives the BIP39 seed for mnemonic and passphrase.
func NewSeedFromMnemonic(mnemonic, passphrase string, password []byte, hint string, params securestore.KDFParams) (*Seed, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	raw := bip39.NewSeed(mnemonic, passphrase)
	defer secret.Wipe(raw)
	return NewSeed(raw, password, hint, params)
}

// GenerateMnemonic returns a fresh 24-word mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	defer secret.Wipe(entropy)
	return bip39.NewMnemonic(entropy)
}

func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}

// FromClosed rebuilds a locked seed from its persisted form.
func FromClosed(c ClosedSeed) *Seed {
	c.Envelope = c.Envelope.Clone()
	return &Seed{closed: c}
}

// Hash is stable across lock and unlock.
func (s *Seed) Hash() SeedHash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed.SeedHash
}

func (s *Seed) PasswordHint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed.PasswordHint
}

func (s *Seed) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open != nil
}

// Closed returns a copy of the persisted form.
func (s *Seed) Closed() ClosedSeed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.closed
	out.Envelope = s.closed.Envelope.Clone()
	return out
}

// Unlock decrypts the seed. Unlocking an open seed is a no-op.
func (s *Seed) Unlock(password []byte) error {
	s.mu.RLock()
	if s.open != nil {
		s.mu.RUnlock()
		return nil
	}
	closed := s.closed
	s.mu.RUnlock()

	raw, err := decryptClosed(closed, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open != nil {
		secret.Wipe(raw)
		return nil
	}
	s.open = raw
	metrics.SeedOpened()
	return nil
}

// Lock wipes the in-memory seed.
func (s *Seed) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return
	}
	secret.Wipe(s.open)
	s.open = nil
	metrics.SeedClosed()
}

// ChangePassword re-encrypts the seed. It works whether or not the seed is open.
func (s *Seed) ChangePassword(oldPassword, newPassword []byte, params securestore.KDFParams) error {
	if len(newPassword) == 0 {
		return ErrPasswordRequired
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()

	raw, err := decryptClosed(closed, oldPassword)
	if err != nil {
		return err
	}
	defer secret.Wipe(raw)
	env, err := securestore.EncryptEnvelope(newPassword, raw, params)
	if err != nil {
		return pkgerrors.Wrap(err, "re-encrypt wallet seed")
	}

	s.mu.Lock()
	s.closed.Envelope = env
	s.mu.Unlock()
	return nil
}

// WithOpenSeed runs fn with the raw seed under a read lock. fn must not
// retain the slice.
func (s *Seed) WithOpenSeed(fn func(raw []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.open == nil {
		return ErrSeedNotOpen
	}
	return fn(s.open)
}

// DerivePrivateKey derives the key at path from the open seed.
func (s *Seed) DerivePrivateKey(path hdpath.Path, network models.Network) (*secret.Key, error) {
	var out *secret.Key
	err := s.WithOpenSeed(func(raw []byte) error {
		k, err := path.DerivePrivateKey(raw, network)
		if err != nil {
			return err
		}
		out = k
		return nil
	})
	return out, err
}

// IdentityAuthenticationKey derives a DIP-13 identity key and returns it with
// the wallet path that locates it.
func (s *Seed) IdentityAuthenticationKey(network models.Network, keyType models.KeyType, identityIndex, keyIndex uint32) (*secret.Key, hdpath.WalletDerivationPath, error) {
	path, err := hdpath.IdentityAuthentication(network, keyType, identityIndex, keyIndex)
	if err != nil {
		return nil, hdpath.WalletDerivationPath{}, err
	}
	k, err := s.DerivePrivateKey(path, network)
	if err != nil {
		return nil, hdpath.WalletDerivationPath{}, err
	}
	return k, hdpath.WalletDerivationPath{SeedHash: s.Hash(), Path: path}, nil
}

func decryptClosed(closed ClosedSeed, password []byte) ([]byte, error) {
	raw, err := securestore.DecryptEnvelope(password, closed.Envelope)
	if err != nil {
		return nil, ErrWrongPasswordOrCorrupt
	}
	hash := hdpath.HashSeed(raw)
	if len(raw) != SeedSize || subtle.ConstantTimeCompare(hash[:], closed.SeedHash[:]) != 1 {
		secret.Wipe(raw)
		return nil, ErrWrongPasswordOrCorrupt
	}
	return raw, nil
}
