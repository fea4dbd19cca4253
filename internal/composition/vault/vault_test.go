package vault

import (
	"bytes"
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dashpay/dash-evo-tool-sub003/internal/config"
	"github.com/dashpay/dash-evo-tool-sub003/internal/hdpath"
	"github.com/dashpay/dash-evo-tool-sub003/internal/identity"
	"github.com/dashpay/dash-evo-tool-sub003/internal/keystore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/securestore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/signer"
	"github.com/dashpay/dash-evo-tool-sub003/internal/storage"
	"github.com/dashpay/dash-evo-tool-sub003/internal/testutil/fsperm"
	"github.com/dashpay/dash-evo-tool-sub003/internal/wallet"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "vault")
	cfg.KDF = securestore.KDFParams{Time: 1, MemoryKB: 64, Threads: 1}
	cfg.UnlockRPS = 0
	return cfg
}

func openVault(t *testing.T, cfg config.Config) *Vault {
	t.Helper()
	v, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func addBareIdentity(t *testing.T, v *Vault, seed byte) models.IdentityID {
	t.Helper()
	var id models.Identity
	id.ID[0] = seed
	id.PublicKeys = map[models.KeyID]models.IdentityPublicKey{}
	require.NoError(t, v.AddIdentity(identity.New(id, v.Network()), false))
	return id.ID
}

func digest(msg string) []byte {
	sum := sha256.Sum256([]byte(msg))
	return sum[:]
}

func TestStoragePassphraseFromEnv(t *testing.T) {
	t.Setenv(storagePassphraseEnv, "  from-env ")
	dir := t.TempDir()
	pass, err := StoragePassphrase(dir)
	require.NoError(t, err)
	require.Equal(t, "from-env", string(pass))
	_, err = os.Stat(filepath.Join(dir, storageKeyFile))
	require.True(t, os.IsNotExist(err))
}

func TestStoragePassphraseGeneratedOnce(t *testing.T) {
	t.Setenv(storagePassphraseEnv, "")
	dir := t.TempDir()
	first, err := StoragePassphrase(dir)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	fsperm.AssertPrivateFile(t, filepath.Join(dir, storageKeyFile))

	second, err := StoragePassphrase(dir)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.NoError(t, WriteStorageKey(dir, "replaced"))
	third, err := StoragePassphrase(dir)
	require.NoError(t, err)
	require.Equal(t, "replaced", string(third))
}

func TestWalletLifecycle(t *testing.T) {
	cfg := testConfig(t)
	v, err := Open(cfg, nil)
	require.NoError(t, err)
	fsperm.AssertPrivateDir(t, cfg.DataDir)
	fsperm.AssertPrivateFile(t, cfg.DBPath())

	hash, mnemonic, err := v.CreateWallet("", "", []byte("pw"), "hint")
	require.NoError(t, err)
	require.Len(t, strings.Fields(mnemonic), 24)
	require.True(t, wallet.ValidateMnemonic(mnemonic))

	list := v.ListWallets()
	require.Len(t, list, 1)
	require.Equal(t, hash, list[0].Hash)
	require.True(t, list[0].Open)
	require.Equal(t, "hint", list[0].PasswordHint)
	require.NoError(t, v.Close())

	v = openVault(t, cfg)
	list = v.ListWallets()
	require.Len(t, list, 1)
	require.False(t, list[0].Open)

	require.ErrorIs(t, v.UnlockWallet(hash, []byte("nope")), wallet.ErrWrongPasswordOrCorrupt)
	require.NoError(t, v.ChangeWalletPassword(hash, []byte("pw"), []byte("pw2")))
	require.NoError(t, v.UnlockWallet(hash, []byte("pw2")))
	require.True(t, v.ListWallets()[0].Open)
	require.NoError(t, v.LockWallet(hash))

	parsed, err := ParseSeedHash(list[0].HashHex())
	require.NoError(t, err)
	require.Equal(t, hash, parsed)
	_, err = ParseSeedHash("abcd")
	require.ErrorIs(t, err, ErrInvalidSeedHash)

	require.NoError(t, v.RemoveWallet(hash))
	require.Empty(t, v.ListWallets())
	require.ErrorIs(t, v.RemoveWallet(hash), storage.ErrNotFound)
}

func TestCreateWalletRejectsBadMnemonic(t *testing.T) {
	v := openVault(t, testConfig(t))
	_, _, err := v.CreateWallet("abandon abandon", "", []byte("pw"), "")
	require.ErrorIs(t, err, wallet.ErrInvalidMnemonic)
	require.Empty(t, v.ListWallets())
}

func TestIdentityAddListRemove(t *testing.T) {
	v := openVault(t, testConfig(t))
	a := addBareIdentity(t, v, 1)
	addBareIdentity(t, v, 2)

	var dup models.Identity
	dup.ID = a
	require.ErrorIs(t, v.AddIdentity(identity.New(dup, v.Network()), false), ErrIdentityExists)
	require.NoError(t, v.AddIdentity(identity.New(dup, v.Network()), true))

	all, err := v.Identities()
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, v.RemoveIdentity(a))
	_, err = v.Identity(a)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestImportKeyAndSign(t *testing.T) {
	v := openVault(t, testConfig(t))
	id := addBareIdentity(t, v, 3)

	raw := make([]byte, 32)
	raw[31] = 7
	pk := models.IdentityPublicKey{
		ID:            0,
		Purpose:       models.PurposeAuthentication,
		SecurityLevel: models.SecurityLevelHigh,
		KeyType:       models.KeyTypeECDSASecp256k1,
	}
	require.NoError(t, v.ImportKey(id, pk, raw))
	require.ErrorIs(t, v.ImportKey(id, pk, raw), ErrKeyIDTaken)

	mismatch := pk
	mismatch.ID = 1
	mismatch.Data = bytes.Repeat([]byte{2}, 33)
	require.ErrorIs(t, v.ImportKey(id, mismatch, raw), ErrKeyMismatch)

	msg := digest("state transition")
	sig, used, err := v.Sign(id, keystore.TargetMainIdentity, 0, msg)
	require.NoError(t, err)
	require.Len(t, used.Data, 33)
	require.NoError(t, signer.Verify(used.KeyType, used.Data, msg, sig))

	_, _, err = v.Sign(id, keystore.TargetMainIdentity, 9, msg)
	require.ErrorIs(t, err, signer.ErrUnknownPublicKey)
}

func TestImportVotingKeyUsesVoterTarget(t *testing.T) {
	v := openVault(t, testConfig(t))
	id := addBareIdentity(t, v, 4)
	raw := make([]byte, 32)
	raw[31] = 9
	pk := models.IdentityPublicKey{
		ID:            0,
		Purpose:       models.PurposeVoting,
		SecurityLevel: models.SecurityLevelHigh,
		KeyType:       models.KeyTypeECDSAHash160,
	}
	require.NoError(t, v.ImportKey(id, pk, raw))

	q, err := v.Identity(id)
	require.NoError(t, err)
	defer q.Destroy()
	require.Empty(t, q.Identity.PublicKeys)

	msg := digest("vote")
	sig, used, err := v.Sign(id, keystore.TargetVoterIdentity, 0, msg)
	require.NoError(t, err)
	require.Len(t, used.Data, 20)
	require.NoError(t, signer.Verify(used.KeyType, used.Data, msg, sig))
}

func TestDeriveKeyFollowsWalletState(t *testing.T) {
	v := openVault(t, testConfig(t))
	hash, _, err := v.CreateWallet(testMnemonic, "", []byte("pw"), "")
	require.NoError(t, err)
	id := addBareIdentity(t, v, 5)

	first, err := v.DeriveKey(id, hash, models.KeyTypeECDSASecp256k1, models.SecurityLevelMaster, 0)
	require.NoError(t, err)
	require.Equal(t, models.KeyID(0), first.ID)
	second, err := v.DeriveKey(id, hash, models.KeyTypeECDSAHash160, models.SecurityLevelHigh, 0)
	require.NoError(t, err)
	require.Equal(t, models.KeyID(1), second.ID)
	require.Len(t, second.Data, 20)

	_, err = v.DeriveKey(id, hash, models.KeyTypeBLS12381, models.SecurityLevelHigh, 0)
	require.ErrorIs(t, err, hdpath.ErrUnsupportedKeyType)

	msg := digest("derived")
	sig, _, err := v.Sign(id, keystore.TargetMainIdentity, 0, msg)
	require.NoError(t, err)
	require.NoError(t, signer.Verify(first.KeyType, first.Data, msg, sig))

	q, err := v.Identity(id)
	require.NoError(t, err)
	public, ok := q.PrivateKeys.PublicKey(keystore.KeyIdentifier{Target: keystore.TargetMainIdentity, ID: 0})
	require.True(t, ok)
	require.NotNil(t, public.InWallet)
	require.Equal(t, hash, public.InWallet.SeedHash)
	q.Destroy()

	require.NoError(t, v.LockWallet(hash))
	_, _, err = v.Sign(id, keystore.TargetMainIdentity, 0, msg)
	require.ErrorIs(t, err, keystore.ErrSeedNotOpen)
	_, err = v.DeriveKey(id, hash, models.KeyTypeECDSASecp256k1, models.SecurityLevelHigh, 0)
	require.ErrorIs(t, err, wallet.ErrSeedNotOpen)

	require.NoError(t, v.UnlockWallet(hash, []byte("pw")))
	again, _, err := v.Sign(id, keystore.TargetMainIdentity, 0, msg)
	require.NoError(t, err)
	require.Equal(t, sig, again)
}

func TestDeriveManyKeysAllSign(t *testing.T) {
	v := openVault(t, testConfig(t))
	hash, _, err := v.CreateWallet(testMnemonic, "", []byte("pw"), "")
	require.NoError(t, err)
	id := addBareIdentity(t, v, 9)

	msg := digest("many")
	seen := map[string]bool{}
	for i := 0; i < 24; i++ {
		kt := models.KeyTypeECDSASecp256k1
		if i%2 == 1 {
			kt = models.KeyTypeECDSAHash160
		}
		pk, err := v.DeriveKey(id, hash, kt, models.SecurityLevelHigh, 0)
		require.NoError(t, err, "key %d", i)
		require.Equal(t, models.KeyID(i), pk.ID)
		require.False(t, seen[string(pk.Data)], "key %d repeats", i)
		seen[string(pk.Data)] = true

		sig, used, err := v.Sign(id, keystore.TargetMainIdentity, pk.ID, msg)
		require.NoError(t, err, "key %d", i)
		require.Equal(t, pk.Data, used.Data)
		require.NoError(t, signer.Verify(kt, pk.Data, msg, sig), "key %d", i)
	}
}

func TestExportImportIdentity(t *testing.T) {
	src := openVault(t, testConfig(t))
	id := addBareIdentity(t, src, 6)
	raw := make([]byte, 32)
	raw[0] = 0x42
	pk := models.IdentityPublicKey{
		ID:            0,
		Purpose:       models.PurposeTransfer,
		SecurityLevel: models.SecurityLevelCritical,
		KeyType:       models.KeyTypeECDSAHash160,
	}
	require.NoError(t, src.ImportKey(id, pk, raw))

	backup := filepath.Join(t.TempDir(), "identity.bak")
	require.NoError(t, src.ExportIdentity(id, backup, []byte("backup pass")))
	fsperm.AssertPrivateFile(t, backup)
	sealed, err := os.ReadFile(backup)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(sealed, []byte(securestore.SealedPrefix)))

	dst := openVault(t, testConfig(t))
	_, err = dst.ImportIdentity(backup, []byte("wrong"), false)
	require.ErrorIs(t, err, securestore.ErrAuthFailed)

	q, err := dst.ImportIdentity(backup, []byte("backup pass"), false)
	require.NoError(t, err)
	defer q.Destroy()
	require.Equal(t, id, q.Identity.ID)
	require.Len(t, q.AvailableTransferKeys(), 1)

	_, err = dst.ImportIdentity(backup, []byte("backup pass"), false)
	require.ErrorIs(t, err, ErrIdentityExists)
}

func TestSealedRecordsSurviveReopen(t *testing.T) {
	t.Setenv(storagePassphraseEnv, "")
	cfg := testConfig(t)
	cfg.SealRecords = true
	v, err := Open(cfg, nil)
	require.NoError(t, err)
	id := addBareIdentity(t, v, 7)
	require.NoError(t, v.Close())

	fsperm.AssertPrivateFile(t, filepath.Join(cfg.DataDir, storageKeyFile))

	v = openVault(t, cfg)
	q, err := v.Identity(id)
	require.NoError(t, err)
	require.Equal(t, id, q.Identity.ID)
}

func TestWriteMetrics(t *testing.T) {
	v := openVault(t, testConfig(t))
	require.ErrorIs(t, v.WriteMetrics(), ErrMetricsFileNotSet)

	v.cfg.MetricsFile = filepath.Join(t.TempDir(), "keyvault.prom")
	_, _, err := v.CreateWallet(testMnemonic, "", []byte("pw"), "")
	require.NoError(t, err)
	require.NoError(t, v.WriteMetrics())
	out, err := os.ReadFile(v.cfg.MetricsFile)
	require.NoError(t, err)
	require.Contains(t, string(out), "keyvault_wallet_open_seeds")
}
