package keystore

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dashpay/dash-evo-tool-sub003/internal/hdpath"
	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/internal/securestore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/wallet"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

var testKDF = securestore.KDFParams{Time: 1, MemoryKB: 64, Threads: 1}

func descriptor(id models.KeyID, purpose models.Purpose, level models.SecurityLevel) QualifiedPublicKey {
	return QualifiedPublicKey{Key: models.IdentityPublicKey{
		ID:            id,
		Purpose:       purpose,
		SecurityLevel: level,
		KeyType:       models.KeyTypeECDSASecp256k1,
		Data:          bytes.Repeat([]byte{byte(id)}, 33),
	}}
}

func fill(b byte) *[secret.KeySize]byte {
	var raw [secret.KeySize]byte
	for i := range raw {
		raw[i] = b
	}
	return &raw
}

func mainID(id models.KeyID) KeyIdentifier {
	return KeyIdentifier{Target: TargetMainIdentity, ID: id}
}

func TestMediumKeyResolvesAndIsNotMaster(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	s.InsertNonEncrypted(mainID(3), descriptor(3, models.PurposeAuthentication, models.SecurityLevelMedium), fill(0x01))

	got, err := s.GetResolve(mainID(3))
	require.NoError(t, err)
	require.NotNil(t, got)
	defer got.Destroy()
	require.Equal(t, bytes.Repeat([]byte{0x01}, 32), got.Secret.Bytes())
	require.Equal(t, models.KeyID(3), got.Public.Key.ID)

	_, ok := s.FindMasterKey()
	require.False(t, ok)
}

func TestSecurityLevelRouting(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	levels := []models.SecurityLevel{
		models.SecurityLevelMaster, models.SecurityLevelCritical, models.SecurityLevelHigh, models.SecurityLevelMedium,
	}
	for i, level := range levels {
		id := mainID(models.KeyID(i))
		s.InsertNonEncrypted(id, descriptor(id.ID, models.PurposeAuthentication, level), fill(byte(i+1)))
		data, _, ok := s.PrivateKeyData(id)
		require.True(t, ok)
		if level == models.SecurityLevelMedium {
			require.IsType(t, AlwaysClear{}, data)
		} else {
			require.IsType(t, Clear{}, data)
		}
	}
}

func TestInsertWipesSourceAndOverwrites(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	raw := fill(0x0a)
	s.InsertNonEncrypted(mainID(1), descriptor(1, models.PurposeTransfer, models.SecurityLevelCritical), raw)
	require.Equal(t, [secret.KeySize]byte{}, *raw)

	old, _, _ := s.PrivateKeyData(mainID(1))
	oldBacking := old.(Clear).Key.Bytes()

	s.InsertNonEncrypted(mainID(1), descriptor(1, models.PurposeTransfer, models.SecurityLevelCritical), fill(0x0b))
	require.Equal(t, make([]byte, secret.KeySize), oldBacking)

	got, err := s.GetResolve(mainID(1))
	require.NoError(t, err)
	require.Equal(t, byte(0x0b), got.Secret.Bytes()[0])
	require.Equal(t, 1, s.Len())
}

func TestGetResolveMissingIsNotAnError(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	got, err := s.GetResolve(mainID(99))
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.Get(mainID(99))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestEncryptedRequiresPassword(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	s.InsertEncrypted(mainID(2), descriptor(2, models.PurposeAuthentication, models.SecurityLevelHigh), []byte{1, 2, 3})
	_, err := s.GetResolve(mainID(2))
	require.ErrorIs(t, err, ErrRequiresPassword)
	_, err = s.Get(mainID(2))
	require.ErrorIs(t, err, ErrRequiresPassword)
	require.True(t, s.Has(mainID(2)))
}

func TestWalletBackedResolution(t *testing.T) {
	registry := wallet.NewRegistry()
	seed, err := wallet.NewSeed(bytes.Repeat([]byte{0x09}, wallet.SeedSize), []byte("pw"), "", testKDF)
	require.NoError(t, err)
	registry.Add(seed)

	path := hdpath.WalletDerivationPath{SeedHash: seed.Hash(), Path: hdpath.BIP44(models.NetworkTestnet, 0, 0, 2)}
	s := New(models.NetworkTestnet, registry)
	s.InsertAtWalletPath(mainID(4), descriptor(4, models.PurposeTransfer, models.SecurityLevelCritical), path)

	want, err := seed.DerivePrivateKey(path.Path, models.NetworkTestnet)
	require.NoError(t, err)

	got, err := s.GetResolve(mainID(4))
	require.NoError(t, err)
	require.True(t, want.Equal(got.Secret))
	require.NotNil(t, got.Public.InWallet)
	require.True(t, path.Equal(*got.Public.InWallet))

	_, err = s.Get(mainID(4))
	require.ErrorIs(t, err, ErrRequiresPassword)

	seed.Lock()
	_, err = s.GetResolve(mainID(4))
	require.ErrorIs(t, err, ErrSeedNotOpen)
	require.False(t, seed.IsOpen(), "resolution never unlocks a seed")

	data, _, ok := s.PrivateKeyData(mainID(4))
	require.True(t, ok)
	wp, ok := WalletPath(data)
	require.True(t, ok)
	require.True(t, path.Equal(wp))
}

func TestWalletPathOnlyForWalletVariant(t *testing.T) {
	for _, d := range []PrivateKeyData{Clear{}, AlwaysClear{}, Encrypted{Ciphertext: []byte{1}}} {
		_, ok := WalletPath(d)
		require.False(t, ok, d.variant().String())
	}
}

func TestWalletBackedMissingSeed(t *testing.T) {
	var unknown hdpath.SeedHash
	unknown[0] = 0xee
	path := hdpath.WalletDerivationPath{SeedHash: unknown, Path: hdpath.Path{hdpath.Hardened(0)}}

	s := New(models.NetworkMainnet, nil)
	s.InsertAtWalletPath(mainID(5), descriptor(5, models.PurposeAuthentication, models.SecurityLevelHigh), path)
	_, err := s.GetResolve(mainID(5))
	require.ErrorIs(t, err, ErrSeedNotFound)

	s.Bind(models.NetworkMainnet, wallet.NewRegistry())
	_, err = s.GetResolve(mainID(5))
	require.ErrorIs(t, err, ErrSeedNotFound)
}

func TestWalletBackedDerivationFailure(t *testing.T) {
	registry := wallet.NewRegistry()
	seed, err := wallet.NewSeed(bytes.Repeat([]byte{0x0c}, wallet.SeedSize), []byte("pw"), "", testKDF)
	require.NoError(t, err)
	registry.Add(seed)

	// Index 2^31 cannot be expressed as a 32-bit child.
	cw := hdpath.WalletDerivationPath{SeedHash: seed.Hash(), Path: hdpath.Path{hdpath.Normal(1 << 31)}}
	s := New(models.NetworkTestnet, registry)
	s.InsertAtWalletPath(mainID(6), descriptor(6, models.PurposeTransfer, models.SecurityLevelCritical), cw)
	_, err = s.GetResolve(mainID(6))
	require.ErrorIs(t, err, ErrDerivationFailed)
}

func TestFindByIdentityPublicKey(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	auth := descriptor(1, models.PurposeAuthentication, models.SecurityLevelHigh)
	vote := descriptor(1, models.PurposeVoting, models.SecurityLevelHigh)
	vote.Key.Data = bytes.Repeat([]byte{0x77}, 33)
	owner := descriptor(2, models.PurposeOwner, models.SecurityLevelCritical)

	s.InsertNonEncrypted(mainID(1), auth, fill(1))
	s.InsertNonEncrypted(KeyIdentifier{Target: TargetVoterIdentity, ID: 1}, vote, fill(2))
	s.InsertNonEncrypted(KeyIdentifier{Target: TargetOperatorIdentity, ID: 2}, owner, fill(3))

	id, ok := s.FindByIdentityPublicKey(auth.Key)
	require.True(t, ok)
	require.Equal(t, mainID(1), id)

	id, ok = s.FindByIdentityPublicKey(vote.Key)
	require.True(t, ok)
	require.Equal(t, TargetVoterIdentity, id.Target)

	id, ok = s.FindByIdentityPublicKey(owner.Key)
	require.True(t, ok, "falls back to a scan when the purpose target does not match")
	require.Equal(t, TargetOperatorIdentity, id.Target)

	other := auth.Key
	other.Data = []byte{0xde, 0xad}
	_, ok = s.FindByIdentityPublicKey(other)
	require.False(t, ok)
}

func TestFindMasterKeyAndOrdering(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	s.InsertNonEncrypted(mainID(7), descriptor(7, models.PurposeAuthentication, models.SecurityLevelMaster), fill(7))
	s.InsertNonEncrypted(mainID(0), descriptor(0, models.PurposeAuthentication, models.SecurityLevelMaster), fill(1))
	s.InsertNonEncrypted(KeyIdentifier{Target: TargetVoterIdentity, ID: 0}, descriptor(0, models.PurposeVoting, models.SecurityLevelHigh), fill(2))

	master, ok := s.FindMasterKey()
	require.True(t, ok)
	require.Equal(t, models.KeyID(0), master.Key.ID)

	keys := s.IdentityPublicKeys()
	require.Len(t, keys, 3)
	require.Equal(t, TargetMainIdentity, keys[0].Target)
	require.Equal(t, models.KeyID(0), keys[0].Public.Key.ID)
	require.Equal(t, models.KeyID(7), keys[1].Public.Key.ID)
	require.Equal(t, TargetVoterIdentity, keys[2].Target)

	require.Equal(t, []KeyIdentifier{mainID(0), mainID(7), {Target: TargetVoterIdentity, ID: 0}}, s.KeysSet())
}

func TestDestroyZeroesAllSecrets(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	s.InsertNonEncrypted(mainID(1), descriptor(1, models.PurposeAuthentication, models.SecurityLevelMedium), fill(0xaa))
	s.InsertNonEncrypted(mainID(2), descriptor(2, models.PurposeAuthentication, models.SecurityLevelHigh), fill(0xbb))
	s.InsertEncrypted(mainID(3), descriptor(3, models.PurposeAuthentication, models.SecurityLevelHigh), []byte{0xcc, 0xcc})

	var backings [][]byte
	for _, id := range s.KeysSet() {
		data, _, _ := s.PrivateKeyData(id)
		switch v := data.(type) {
		case AlwaysClear:
			backings = append(backings, v.Key.Bytes())
		case Clear:
			backings = append(backings, v.Key.Bytes())
		case Encrypted:
			backings = append(backings, v.Ciphertext)
		}
	}
	require.Len(t, backings, 3)

	s.Destroy()
	require.Zero(t, s.Len())
	for _, b := range backings {
		require.Equal(t, make([]byte, len(b)), b)
	}
}

func TestRemoveWipesEntry(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	s.InsertNonEncrypted(mainID(1), descriptor(1, models.PurposeTransfer, models.SecurityLevelCritical), fill(0x5c))
	data, _, _ := s.PrivateKeyData(mainID(1))
	backing := data.(Clear).Key.Bytes()

	require.True(t, s.Remove(mainID(1)))
	require.False(t, s.Has(mainID(1)))
	require.Equal(t, make([]byte, secret.KeySize), backing)
	require.False(t, s.Remove(mainID(1)))
}

func TestResolvedKeyIsIndependentCopy(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	s.InsertNonEncrypted(mainID(1), descriptor(1, models.PurposeTransfer, models.SecurityLevelCritical), fill(0x42))
	got, err := s.GetResolve(mainID(1))
	require.NoError(t, err)
	got.Destroy()

	again, err := s.GetResolve(mainID(1))
	require.NoError(t, err)
	require.Equal(t, byte(0x42), again.Secret.Bytes()[0])
}

func TestConcurrentResolveAndInsert(t *testing.T) {
	s := New(models.NetworkTestnet, nil)
	s.InsertNonEncrypted(mainID(0), descriptor(0, models.PurposeAuthentication, models.SecurityLevelHigh), fill(1))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				k, err := s.GetResolve(mainID(0))
				if err != nil || k == nil {
					t.Errorf("resolve failed: %v", err)
					return
				}
				k.Destroy()
			}
		}()
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := mainID(models.KeyID(n*100 + j + 1))
				s.InsertNonEncrypted(id, descriptor(id.ID, models.PurposeTransfer, models.SecurityLevelCritical), fill(2))
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 201, s.Len())
}

func TestTargetForPurpose(t *testing.T) {
	require.Equal(t, TargetVoterIdentity, TargetForPurpose(models.PurposeVoting))
	for _, p := range []models.Purpose{models.PurposeAuthentication, models.PurposeTransfer, models.PurposeOwner, models.PurposeSystem} {
		require.Equal(t, TargetMainIdentity, TargetForPurpose(p))
	}
}
