// Package vault composes configuration, the wallet registry and the record
// store into the service used by the keyvault command.
package vault

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dashpay/dash-evo-tool-sub003/internal/config"
	"github.com/dashpay/dash-evo-tool-sub003/internal/identity"
	"github.com/dashpay/dash-evo-tool-sub003/internal/keystore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/internal/securestore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/signer"
	"github.com/dashpay/dash-evo-tool-sub003/internal/storage"
	"github.com/dashpay/dash-evo-tool-sub003/internal/wallet"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

var (
	ErrIdentityExists    = errors.New("identity already stored")
	ErrKeyMismatch       = errors.New("private key does not match public key data")
	ErrKeyIDTaken        = errors.New("key id already used by identity")
	ErrInvalidSeedHash   = errors.New("seed hash must be 32 hex-encoded bytes")
	ErrMetricsFileNotSet = errors.New("metrics file is not configured")
)

type Vault struct {
	cfg     config.Config
	store   *storage.Store
	wallets *wallet.Registry
	logger  *zap.Logger
}

// Open creates the data directory, opens the network database and loads every
// stored wallet in locked state.
func Open(cfg config.Config, logger *zap.Logger) (*Vault, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, pkgerrors.Wrap(err, "create data dir")
	}
	opts := []storage.Option{storage.WithLogger(logger.Named("storage"))}
	if cfg.SealRecords {
		pass, err := StoragePassphrase(cfg.DataDir)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "resolve storage passphrase")
		}
		opts = append(opts, storage.WithPassphrase(pass, cfg.KDF))
		secret.Wipe(pass)
	}
	store, err := storage.Open(cfg.DBPath(), opts...)
	if err != nil {
		return nil, err
	}
	v := &Vault{
		cfg:   cfg,
		store: store,
		wallets: wallet.NewRegistry(
			wallet.WithUnlockLimit(cfg.UnlockRPS, cfg.UnlockBurst),
			wallet.WithLogger(logger.Named("wallet")),
		),
		logger: logger,
	}
	closed, corrupt, err := store.LoadWallets()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	for _, c := range closed {
		v.wallets.Add(wallet.FromClosed(c))
	}
	logger.Info("vault opened",
		zap.String("network", cfg.Network.String()),
		zap.Int("wallets", len(closed)),
		zap.Int("unreadable_wallets", len(corrupt)))
	return v, nil
}

// Close locks every wallet and closes the database.
func (v *Vault) Close() error {
	v.wallets.LockAll()
	return v.store.Close()
}

func (v *Vault) Network() models.Network { return v.cfg.Network }

func (v *Vault) Wallets() *wallet.Registry { return v.wallets }

// ParseSeedHash decodes the hex form printed by ListWallets.
func ParseSeedHash(raw string) (wallet.SeedHash, error) {
	var h wallet.SeedHash
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != len(h) {
		return h, ErrInvalidSeedHash
	}
	copy(h[:], decoded)
	return h, nil
}

type WalletInfo struct {
	Hash         wallet.SeedHash
	PasswordHint string
	Open         bool
}

func (w WalletInfo) HashHex() string { return hex.EncodeToString(w.Hash[:]) }

// CreateWallet stores a new wallet from mnemonic, generating one when empty.
// The mnemonic actually used is returned so it can be shown once.
func (v *Vault) CreateWallet(mnemonic, bip39Passphrase string, password []byte, hint string) (wallet.SeedHash, string, error) {
	if mnemonic == "" {
		generated, err := wallet.GenerateMnemonic()
		if err != nil {
			return wallet.SeedHash{}, "", pkgerrors.Wrap(err, "generate mnemonic")
		}
		mnemonic = generated
	}
	seed, err := wallet.NewSeedFromMnemonic(mnemonic, bip39Passphrase, password, hint, v.cfg.KDF)
	if err != nil {
		return wallet.SeedHash{}, "", err
	}
	if err := v.store.SaveWallet(seed.Closed()); err != nil {
		seed.Lock()
		return wallet.SeedHash{}, "", err
	}
	seed = v.wallets.Add(seed)
	v.logger.Info("wallet created", zap.String("seed_hash", wallet.ShortHash(seed.Hash())))
	return seed.Hash(), wallet.NormalizeMnemonic(mnemonic), nil
}

func (v *Vault) ListWallets() []WalletInfo {
	hashes := v.wallets.Hashes()
	out := make([]WalletInfo, 0, len(hashes))
	for _, h := range hashes {
		s, ok := v.wallets.LookupSeed(h)
		if !ok {
			continue
		}
		out = append(out, WalletInfo{Hash: h, PasswordHint: s.PasswordHint(), Open: s.IsOpen()})
	}
	return out
}

func (v *Vault) UnlockWallet(hash wallet.SeedHash, password []byte) error {
	return v.wallets.Unlock(hash, password)
}

func (v *Vault) LockWallet(hash wallet.SeedHash) error {
	return v.wallets.Lock(hash)
}

// ChangeWalletPassword re-encrypts the seed and persists the new closed form.
func (v *Vault) ChangeWalletPassword(hash wallet.SeedHash, oldPassword, newPassword []byte) error {
	s, ok := v.wallets.LookupSeed(hash)
	if !ok {
		return pkgerrors.Wrap(wallet.ErrSeedNotFound, wallet.ShortHash(hash))
	}
	if err := s.ChangePassword(oldPassword, newPassword, v.cfg.KDF); err != nil {
		return err
	}
	return v.store.SaveWallet(s.Closed())
}

func (v *Vault) RemoveWallet(hash wallet.SeedHash) error {
	if err := v.store.DeleteWallet(hash); err != nil {
		return err
	}
	v.wallets.Remove(hash)
	return nil
}

// AddIdentity stores q. An identity already stored under the same id is
// rejected unless replace is set.
func (v *Vault) AddIdentity(q *identity.QualifiedIdentity, replace bool) error {
	if !replace {
		existing, err := v.store.LoadIdentity(v.cfg.Network, q.Identity.ID, v.wallets)
		if err == nil {
			existing.Destroy()
			return pkgerrors.Wrap(ErrIdentityExists, identity.EncodeID(q.Identity.ID))
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	v.adopt(q)
	return v.store.SaveIdentity(v.cfg.Network, q)
}

func (v *Vault) adopt(q *identity.QualifiedIdentity) {
	q.Bind(v.cfg.Network, v.wallets)
	q.SetLogger(v.logger.Named("identity"))
}

func (v *Vault) Identity(id models.IdentityID) (*identity.QualifiedIdentity, error) {
	q, err := v.store.LoadIdentity(v.cfg.Network, id, v.wallets)
	if err != nil {
		return nil, err
	}
	v.adopt(q)
	return q, nil
}

// Identities loads every readable identity for the configured network.
func (v *Vault) Identities() ([]*identity.QualifiedIdentity, error) {
	out, _, err := v.store.LoadIdentities(v.cfg.Network, v.wallets)
	if err != nil {
		return nil, err
	}
	for _, q := range out {
		v.adopt(q)
	}
	return out, nil
}

func (v *Vault) RemoveIdentity(id models.IdentityID) error {
	return v.store.DeleteIdentity(v.cfg.Network, id)
}

// ImportKey attaches a raw private key to an identity. The key must produce
// pk.Data, and pk.ID must be free on the identity.
func (v *Vault) ImportKey(id models.IdentityID, pk models.IdentityPublicKey, raw []byte) error {
	k, err := secret.NewKey(raw)
	if err != nil {
		return err
	}
	defer k.Destroy()
	data, err := signer.PublicKeyData(pk.KeyType, k)
	if err != nil {
		return err
	}
	if len(pk.Data) == 0 {
		pk.Data = data
	} else if !bytes.Equal(data, pk.Data) {
		return ErrKeyMismatch
	}

	q, err := v.Identity(id)
	if err != nil {
		return err
	}
	defer q.Destroy()
	kid := keystore.KeyIdentifier{Target: keystore.TargetForPurpose(pk.Purpose), ID: pk.ID}
	_, onIdentity := q.Identity.PublicKeys[pk.ID]
	if q.PrivateKeys.Has(kid) || (kid.Target == keystore.TargetMainIdentity && onIdentity) {
		return pkgerrors.Wrapf(ErrKeyIDTaken, "key %s", kid)
	}
	arr := k.Array()
	q.PrivateKeys.InsertNonEncrypted(
		kid,
		keystore.QualifiedPublicKey{Key: pk},
		&arr,
	)
	addPublicKey(q, pk)
	return v.store.SaveIdentity(v.cfg.Network, q)
}

// DeriveKey derives the next DIP-13 authentication key for an identity from
// an open wallet and records it as a wallet-backed key.
func (v *Vault) DeriveKey(id models.IdentityID, hash wallet.SeedHash, keyType models.KeyType, level models.SecurityLevel, identityIndex uint32) (models.IdentityPublicKey, error) {
	seed, ok := v.wallets.LookupSeed(hash)
	if !ok {
		return models.IdentityPublicKey{}, pkgerrors.Wrap(wallet.ErrSeedNotFound, wallet.ShortHash(hash))
	}
	q, err := v.Identity(id)
	if err != nil {
		return models.IdentityPublicKey{}, err
	}
	defer q.Destroy()

	keyID := nextKeyID(q)
	k, path, err := seed.IdentityAuthenticationKey(v.cfg.Network, keyType, identityIndex, uint32(keyID))
	if err != nil {
		return models.IdentityPublicKey{}, err
	}
	data, err := signer.PublicKeyData(keyType, k)
	k.Destroy()
	if err != nil {
		return models.IdentityPublicKey{}, err
	}
	pk := models.IdentityPublicKey{
		ID:            keyID,
		Purpose:       models.PurposeAuthentication,
		SecurityLevel: level,
		KeyType:       keyType,
		Data:          data,
	}
	q.PrivateKeys.InsertAtWalletPath(
		keystore.KeyIdentifier{Target: keystore.TargetMainIdentity, ID: keyID},
		keystore.QualifiedPublicKey{Key: pk},
		path,
	)
	addPublicKey(q, pk)
	if err := v.store.SaveIdentity(v.cfg.Network, q); err != nil {
		return models.IdentityPublicKey{}, err
	}
	v.logger.Info("identity key derived",
		zap.String("identity_id", identity.EncodeID(id)),
		zap.Uint32("key_id", uint32(keyID)),
		zap.String("path", path.Path.String()))
	return pk, nil
}

func nextKeyID(q *identity.QualifiedIdentity) models.KeyID {
	var next models.KeyID
	for keyID := range q.Identity.PublicKeys {
		if keyID+1 > next {
			next = keyID + 1
		}
	}
	for _, tk := range q.PrivateKeys.IdentityPublicKeys() {
		if tk.Target == keystore.TargetMainIdentity && tk.Public.Key.ID+1 > next {
			next = tk.Public.Key.ID + 1
		}
	}
	return next
}

func addPublicKey(q *identity.QualifiedIdentity, pk models.IdentityPublicKey) {
	if keystore.TargetForPurpose(pk.Purpose) != keystore.TargetMainIdentity {
		return
	}
	if q.Identity.PublicKeys == nil {
		q.Identity.PublicKeys = make(map[models.KeyID]models.IdentityPublicKey)
	}
	q.Identity.PublicKeys[pk.ID] = pk
}

// LookupPublicKey finds a descriptor on the identity, falling back to the keys
// held for its voter and operator roles.
func LookupPublicKey(q *identity.QualifiedIdentity, target keystore.PrivateKeyTarget, keyID models.KeyID) (models.IdentityPublicKey, bool) {
	if target == keystore.TargetMainIdentity {
		if pk, ok := q.Identity.PublicKeys[keyID]; ok {
			return pk, true
		}
	}
	public, ok := q.PrivateKeys.PublicKey(keystore.KeyIdentifier{Target: target, ID: keyID})
	if !ok {
		return models.IdentityPublicKey{}, false
	}
	return public.Key, true
}

// Sign signs message with the identity key at target and keyID. Wallet-backed
// keys need their wallet unlocked first. For ECDSA keys message must already be
// a 32-byte digest, otherwise signer.ErrInvalidDigest is returned.
func (v *Vault) Sign(id models.IdentityID, target keystore.PrivateKeyTarget, keyID models.KeyID, message []byte) ([]byte, models.IdentityPublicKey, error) {
	q, err := v.Identity(id)
	if err != nil {
		return nil, models.IdentityPublicKey{}, err
	}
	defer q.Destroy()
	pk, ok := LookupPublicKey(q, target, keyID)
	if !ok {
		return nil, models.IdentityPublicKey{}, pkgerrors.Wrapf(signer.ErrUnknownPublicKey, "%s/%d", target, keyID)
	}
	sig, err := q.Sign(pk, message)
	if err != nil {
		return nil, pk, err
	}
	return sig, pk, nil
}

// ExportIdentity writes the identity, including its private keys, to a file
// sealed under passphrase.
func (v *Vault) ExportIdentity(id models.IdentityID, path string, passphrase []byte) error {
	q, err := v.Identity(id)
	if err != nil {
		return err
	}
	defer q.Destroy()
	raw, err := q.MarshalBinary()
	if err != nil {
		return err
	}
	defer secret.Wipe(raw)
	if err := securestore.WriteSealedFile(path, passphrase, raw, v.cfg.KDF); err != nil {
		return pkgerrors.Wrap(err, "write identity backup")
	}
	v.logger.Info("identity exported", zap.String("identity_id", identity.EncodeID(id)))
	return nil
}

// ImportIdentity restores an identity from a sealed backup file.
func (v *Vault) ImportIdentity(path string, passphrase []byte, replace bool) (*identity.QualifiedIdentity, error) {
	raw, err := securestore.ReadSealedFile(path, passphrase)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read identity backup")
	}
	defer secret.Wipe(raw)
	q, err := identity.Decode(raw, v.cfg.Network, v.wallets)
	if err != nil {
		return nil, err
	}
	if err := v.AddIdentity(q, replace); err != nil {
		q.Destroy()
		return nil, err
	}
	return q, nil
}

// WriteMetrics dumps the default registry to the configured text file.
func (v *Vault) WriteMetrics() error {
	if v.cfg.MetricsFile == "" {
		return ErrMetricsFileNotSet
	}
	return prometheus.WriteToTextfile(v.cfg.MetricsFile, prometheus.DefaultGatherer)
}
