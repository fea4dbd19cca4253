package signer

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dashpay/dash-evo-tool-sub003/internal/keystore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/metrics"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

// Signer produces signatures for identity public keys backed by a KeyStorage.
// It holds no key material itself; every resolved key is destroyed after use.
type Signer struct {
	keys   *keystore.KeyStorage
	logger *zap.Logger
}

type Option func(*Signer)

func WithLogger(l *zap.Logger) Option {
	return func(s *Signer) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(keys *keystore.KeyStorage, opts ...Option) *Signer {
	s := &Signer{keys: keys, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign signs message with the private key matching pk.
//
// ECDSA key types (ECDSA_SECP256K1, ECDSA_HASH160) sign message as a
// pre-computed 32-byte digest and fail with ErrInvalidDigest for any other
// length: callers hash arbitrary data first (double SHA-256 for Dash
// messages). BLS and Ed25519 keys sign the message bytes directly.
func (s *Signer) Sign(pk models.IdentityPublicKey, message []byte) (sig []byte, err error) {
	started := time.Now()
	defer func() { metrics.ObserveSign(pk.KeyType.String(), err, started) }()

	if pk.KeyType == models.KeyTypeBIP13ScriptHash {
		return nil, ErrUnsupportedKeyTypeForSigning
	}
	id, ok := s.keys.FindByIdentityPublicKey(pk)
	if !ok {
		return nil, pkgerrors.Wrapf(ErrUnknownPublicKey, "key %d (%s)", pk.ID, pk.Purpose)
	}
	resolved, err := s.keys.GetResolve(id)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		// removed between lookup and resolve
		return nil, pkgerrors.Wrapf(keystore.ErrKeyNotFound, "key %s", id)
	}
	defer resolved.Destroy()

	sig, err = signWith(pk.KeyType, resolved.Secret, message)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "sign with key %s", id)
	}
	s.logger.Debug("message signed",
		zap.Stringer("key", id),
		zap.Stringer("key_type", pk.KeyType),
		zap.Int("signature_len", len(sig)),
	)
	return sig, nil
}

// CanSignWith reports whether a private key is stored for pk. It never
// resolves the key, so locked wallets and encrypted keys still count.
func (s *Signer) CanSignWith(pk models.IdentityPublicKey) bool {
	return s.keys.Has(keystore.KeyIdentifier{Target: keystore.TargetForPurpose(pk.Purpose), ID: pk.ID})
}
