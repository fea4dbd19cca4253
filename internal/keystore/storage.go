package keystore

import (
	"bytes"
	"errors"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/dashpay/dash-evo-tool-sub003/internal/hdpath"
	"github.com/dashpay/dash-evo-tool-sub003/internal/metrics"
	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/internal/wallet"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

var (
	ErrKeyNotFound      = errors.New("private key not found")
	ErrRequiresPassword = errors.New("private key requires a password")

	ErrSeedNotFound     = wallet.ErrSeedNotFound
	ErrSeedNotOpen      = wallet.ErrSeedNotOpen
	ErrDerivationFailed = hdpath.ErrDerivationFailed
)

// SeedSource looks up wallet seeds by hash. The wallet registry implements it.
type SeedSource interface {
	LookupSeed(hash hdpath.SeedHash) (*wallet.Seed, bool)
}

type entry struct {
	public QualifiedPublicKey
	data   PrivateKeyData
}

// KeyStorage maps key identifiers to a public descriptor and a private key
// representation. It never locks or unlocks wallet seeds.
type KeyStorage struct {
	mu      sync.RWMutex
	keys    map[KeyIdentifier]entry
	seeds   SeedSource
	network models.Network
}

func New(network models.Network, seeds SeedSource) *KeyStorage {
	return &KeyStorage{
		keys:    make(map[KeyIdentifier]entry),
		seeds:   seeds,
		network: network,
	}
}

// Bind sets the seed source and network used for wallet-backed keys.
func (s *KeyStorage) Bind(network models.Network, seeds SeedSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = network
	s.seeds = seeds
}

func (s *KeyStorage) Seeds() SeedSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seeds
}

func (s *KeyStorage) Network() models.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network
}

// InsertNonEncrypted stores raw as AlwaysClear for MEDIUM keys and as Clear
// otherwise. raw is wiped after it is copied.
func (s *KeyStorage) InsertNonEncrypted(id KeyIdentifier, public QualifiedPublicKey, raw *[secret.KeySize]byte) {
	k := secret.FromArray(raw)
	var data PrivateKeyData
	if public.Key.SecurityLevel == models.SecurityLevelMedium {
		data = AlwaysClear{Key: k}
	} else {
		data = Clear{Key: k}
	}
	s.put(id, public, data)
}

// InsertAtWalletPath stores a key that is re-derived from a wallet seed on demand.
func (s *KeyStorage) InsertAtWalletPath(id KeyIdentifier, public QualifiedPublicKey, path hdpath.WalletDerivationPath) {
	if public.InWallet == nil {
		wp := path
		public.InWallet = &wp
	}
	s.put(id, public, AtWalletDerivationPath{Path: path})
}

// InsertEncrypted stores opaque ciphertext. Such keys never resolve.
func (s *KeyStorage) InsertEncrypted(id KeyIdentifier, public QualifiedPublicKey, ciphertext []byte) {
	s.put(id, public, Encrypted{Ciphertext: append([]byte(nil), ciphertext...)})
}

func (s *KeyStorage) put(id KeyIdentifier, public QualifiedPublicKey, data PrivateKeyData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.keys[id]; ok {
		destroyData(prev.data)
	}
	s.keys[id] = entry{public: public.Clone(), data: data}
}

// Remove deletes and wipes the entry at id.
func (s *KeyStorage) Remove(id KeyIdentifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.keys[id]
	if !ok {
		return false
	}
	destroyData(e.data)
	delete(s.keys, id)
	return true
}

// Get returns clear keys without touching wallets. Encrypted and
// wallet-backed keys return ErrRequiresPassword. A missing id is (nil, nil).
func (s *KeyStorage) Get(id KeyIdentifier) (*ResolvedKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.keys[id]
	if !ok {
		return nil, nil
	}
	switch d := e.data.(type) {
	case AlwaysClear:
		return &ResolvedKey{Public: e.public.Clone(), Secret: d.Key.Clone()}, nil
	case Clear:
		return &ResolvedKey{Public: e.public.Clone(), Secret: d.Key.Clone()}, nil
	default:
		return nil, pkgerrors.Wrapf(ErrRequiresPassword, "key %s is %s", id, d.variant())
	}
}

// GetResolve returns the descriptor and raw private key for id, deriving
// wallet-backed keys from an already open seed. A missing id is (nil, nil).
// The caller must Destroy the result.
func (s *KeyStorage) GetResolve(id KeyIdentifier) (*ResolvedKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.keys[id]
	if !ok {
		return nil, nil
	}
	k, err := s.resolveLocked(id, e.data)
	metrics.ObserveResolution(e.data.variant().String(), err)
	if err != nil {
		return nil, err
	}
	return &ResolvedKey{Public: e.public.Clone(), Secret: k}, nil
}

func (s *KeyStorage) resolveLocked(id KeyIdentifier, data PrivateKeyData) (*secret.Key, error) {
	switch d := data.(type) {
	case AlwaysClear:
		return d.Key.Clone(), nil
	case Clear:
		return d.Key.Clone(), nil
	case Encrypted:
		return nil, pkgerrors.Wrapf(ErrRequiresPassword, "key %s is encrypted", id)
	case AtWalletDerivationPath:
		if s.seeds == nil {
			return nil, pkgerrors.Wrapf(ErrSeedNotFound, "key %s: no wallets bound", id)
		}
		seed, ok := s.seeds.LookupSeed(d.Path.SeedHash)
		if !ok {
			return nil, pkgerrors.Wrapf(ErrSeedNotFound, "key %s at %s", id, d.Path.Path)
		}
		k, err := seed.DerivePrivateKey(d.Path.Path, s.network)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "key %s at %s", id, d.Path.Path)
		}
		return k, nil
	default:
		return nil, pkgerrors.Errorf("key %s: unknown private key variant %T", id, data)
	}
}

func (s *KeyStorage) Has(id KeyIdentifier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[id]
	return ok
}

// PrivateKeyData returns the stored variant and the wallet location recorded
// on the descriptor. The variant must not be destroyed by the caller.
func (s *KeyStorage) PrivateKeyData(id KeyIdentifier) (PrivateKeyData, *hdpath.WalletDerivationPath, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.keys[id]
	if !ok {
		return nil, nil, false
	}
	return e.data, e.public.Clone().InWallet, true
}

// PublicKey returns the descriptor stored at id.
func (s *KeyStorage) PublicKey(id KeyIdentifier) (QualifiedPublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.keys[id]
	if !ok {
		return QualifiedPublicKey{}, false
	}
	return e.public.Clone(), true
}

// FindByIdentityPublicKey locates the entry holding pk. The purpose-derived
// identifier is tried first; otherwise entries are scanned for matching
// id, key type and key data.
func (s *KeyStorage) FindByIdentityPublicKey(pk models.IdentityPublicKey) (KeyIdentifier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	direct := KeyIdentifier{Target: TargetForPurpose(pk.Purpose), ID: pk.ID}
	if e, ok := s.keys[direct]; ok && matchesPublicKey(e.public.Key, pk) {
		return direct, true
	}
	for _, id := range s.sortedIDsLocked() {
		if matchesPublicKey(s.keys[id].public.Key, pk) {
			return id, true
		}
	}
	return KeyIdentifier{}, false
}

func matchesPublicKey(stored, pk models.IdentityPublicKey) bool {
	return stored.ID == pk.ID && stored.KeyType == pk.KeyType && stored.Purpose == pk.Purpose &&
		bytes.Equal(stored.Data, pk.Data)
}

// FindMasterKey returns the first authentication key at MASTER level in
// identifier order.
func (s *KeyStorage) FindMasterKey() (QualifiedPublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.sortedIDsLocked() {
		k := s.keys[id].public
		if k.Key.Purpose == models.PurposeAuthentication && k.Key.SecurityLevel == models.SecurityLevelMaster {
			return k.Clone(), true
		}
	}
	return QualifiedPublicKey{}, false
}

type TargetedPublicKey struct {
	Target PrivateKeyTarget
	Public QualifiedPublicKey
}

// IdentityPublicKeys lists every descriptor in identifier order.
func (s *KeyStorage) IdentityPublicKeys() []TargetedPublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.sortedIDsLocked()
	out := make([]TargetedPublicKey, 0, len(ids))
	for _, id := range ids {
		out = append(out, TargetedPublicKey{Target: id.Target, Public: s.keys[id].public.Clone()})
	}
	return out
}

// KeysSet returns every identifier in order.
func (s *KeyStorage) KeysSet() []KeyIdentifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedIDsLocked()
}

func (s *KeyStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Destroy wipes every secret-bearing entry and empties the storage.
func (s *KeyStorage) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.keys {
		destroyData(e.data)
		delete(s.keys, id)
	}
}

func (s *KeyStorage) sortedIDsLocked() []KeyIdentifier {
	ids := make([]KeyIdentifier, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}
