// Package storage persists qualified identities and closed wallet seeds in a
// bbolt database.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/dashpay/dash-evo-tool-sub003/internal/identity"
	"github.com/dashpay/dash-evo-tool-sub003/internal/keystore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/internal/securestore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/wallet"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

const (
	// dbTimeout bounds how long Open waits for the file lock.
	dbTimeout = time.Second

	latestStoreVersion = 0x01
)

var (
	identitiesBucket = []byte("identities")
	walletsBucket    = []byte("wallets")
	metaBucket       = []byte("meta")

	versionKey = []byte("version")
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrUnsupportedVersion = errors.New("unsupported store version")
	ErrMalformedRecord    = errors.New("malformed record")
)

// Store keeps one record per identity, keyed by network and identity id, and
// one record per wallet keyed by seed hash. Identity records hold clear key
// bytes unless the store was opened with a passphrase, in which case each
// record is sealed.
type Store struct {
	db         *bolt.DB
	passphrase []byte
	params     securestore.KDFParams
	logger     *zap.Logger
}

type Option func(*Store)

// WithPassphrase seals identity records at rest.
func WithPassphrase(passphrase []byte, params securestore.KDFParams) Option {
	return func(s *Store) {
		s.passphrase = append([]byte(nil), passphrase...)
		s.params = params
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: dbTimeout})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open %s", path)
	}
	s := &Store{db: db, params: securestore.DefaultKDFParams(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		for _, name := range [][]byte{identitiesBucket, walletsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		v := meta.Get(versionKey)
		if v == nil {
			return meta.Put(versionKey, []byte{latestStoreVersion})
		}
		if len(v) != 1 || v[0] != latestStoreVersion {
			return pkgerrors.Wrapf(ErrUnsupportedVersion, "%x", v)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	secret.Wipe(s.passphrase)
	return s.db.Close()
}

func identityKey(network models.Network, id models.IdentityID) []byte {
	k := make([]byte, 0, 1+models.IdentityIDSize)
	k = append(k, byte(network))
	return append(k, id[:]...)
}

// SaveIdentity writes q under network, replacing any earlier record.
func (s *Store) SaveIdentity(network models.Network, q *identity.QualifiedIdentity) error {
	raw, err := q.MarshalBinary()
	if err != nil {
		return err
	}
	defer secret.Wipe(raw)
	value := raw
	if len(s.passphrase) > 0 {
		if value, err = securestore.Seal(s.passphrase, raw, s.params); err != nil {
			return pkgerrors.Wrap(err, "seal identity record")
		}
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(identitiesBucket).Put(identityKey(network, q.Identity.ID), value)
	})
}

func (s *Store) LoadIdentity(network models.Network, id models.IdentityID, seeds keystore.SeedSource) (*identity.QualifiedIdentity, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(identitiesBucket).Get(identityKey(network, id))
		if v == nil {
			return pkgerrors.Wrap(ErrNotFound, identity.EncodeID(id))
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.decodeIdentity(value, network, seeds)
}

func (s *Store) decodeIdentity(value []byte, network models.Network, seeds keystore.SeedSource) (*identity.QualifiedIdentity, error) {
	raw := value
	if len(s.passphrase) > 0 {
		opened, err := securestore.Open(s.passphrase, value)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "open identity record")
		}
		raw = opened
	}
	defer secret.Wipe(raw)
	return identity.Decode(raw, network, seeds)
}

// RecordError reports one identity record that failed to load.
type RecordError struct {
	Key string
	Err error
}

func (e RecordError) Error() string { return e.Key + ": " + e.Err.Error() }

func (e RecordError) Unwrap() error { return e.Err }

// LoadIdentities returns every identity stored for network. Records that fail
// to decode are skipped and reported individually.
func (s *Store) LoadIdentities(network models.Network, seeds keystore.SeedSource) ([]*identity.QualifiedIdentity, []RecordError, error) {
	type record struct {
		key   string
		value []byte
	}
	var records []record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(identitiesBucket).Cursor()
		prefix := []byte{byte(network)}
		for k, v := c.Seek(prefix); k != nil && k[0] == prefix[0]; k, v = c.Next() {
			records = append(records, record{key: hex.EncodeToString(k[1:]), value: append([]byte(nil), v...)})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		out     []*identity.QualifiedIdentity
		corrupt []RecordError
	)
	for _, rec := range records {
		q, err := s.decodeIdentity(rec.value, network, seeds)
		secret.Wipe(rec.value)
		if err != nil {
			s.logger.Warn("skipping unreadable identity record", zap.String("identity_key", rec.key), zap.Error(err))
			corrupt = append(corrupt, RecordError{Key: rec.key, Err: err})
			continue
		}
		out = append(out, q)
	}
	return out, corrupt, nil
}

func (s *Store) DeleteIdentity(network models.Network, id models.IdentityID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(identitiesBucket)
		k := identityKey(network, id)
		if b.Get(k) == nil {
			return pkgerrors.Wrap(ErrNotFound, identity.EncodeID(id))
		}
		return b.Delete(k)
	})
}

// SaveWallet stores the closed form of a seed. Open seed bytes never reach disk.
func (s *Store) SaveWallet(closed wallet.ClosedSeed) error {
	value, err := json.Marshal(closed)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(walletsBucket).Put(closed.SeedHash[:], value)
	})
}

// LoadWallets returns all stored wallets ordered by seed hash. Unreadable
// records are skipped and reported.
func (s *Store) LoadWallets() ([]wallet.ClosedSeed, []RecordError, error) {
	var (
		out     []wallet.ClosedSeed
		corrupt []RecordError
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(walletsBucket).ForEach(func(k, v []byte) error {
			var closed wallet.ClosedSeed
			if err := json.Unmarshal(v, &closed); err != nil || closed.Envelope == nil || string(closed.SeedHash[:]) != string(k) {
				if err == nil {
					err = ErrMalformedRecord
				}
				s.logger.Warn("skipping unreadable wallet record", zap.String("seed_hash", hex.EncodeToString(k)), zap.Error(err))
				corrupt = append(corrupt, RecordError{Key: hex.EncodeToString(k), Err: err})
				return nil
			}
			out = append(out, closed)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return out, corrupt, nil
}

func (s *Store) DeleteWallet(hash wallet.SeedHash) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(walletsBucket)
		if b.Get(hash[:]) == nil {
			return pkgerrors.Wrap(ErrNotFound, hex.EncodeToString(hash[:]))
		}
		return b.Delete(hash[:])
	})
}
