package hdpath

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDeriveBIP32Vector1(t *testing.T) {
	seed := mustHex(t, "000102030405060708090a0b0c0d0e0f")

	ext, err := Path{Hardened(0)}.DeriveExtended(seed, models.NetworkMainnet)
	require.NoError(t, err)
	require.Equal(t, "xprv9uHRZZhk6KAJC1avXpDAp4MDc3sQKNxDiPvvkX8Br5ngLNv1TxvUxt4cV1rGL5hj6KCesnDYUhd7oWgT11eZG7XnxHrnYeSvkzY7d2bhkJ7", ext.String())

	ext, err = Path{Hardened(0), Normal(1)}.DeriveExtended(seed, models.NetworkMainnet)
	require.NoError(t, err)
	require.Equal(t, "xprv9wTYmMFdV23N2TdNG573QoEsfRrWKQgWeibmLntzniatZvR9BmLnvSxqu53Kw1UmYPxLgboyZQaXwTCg8MSY3H2EU4pWcQDnRnrVA1xe8fs", ext.String())
}

func TestDerivationIsDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x5a}, 64)
	var idx [32]byte
	idx[31] = 9
	p := Path{Hardened(9), Hardened(1), Hardened256(idx), Normal256(idx), Normal(3)}

	a, err := p.DerivePrivateKey(seed, models.NetworkTestnet)
	require.NoError(t, err)
	b, err := p.DerivePrivateKey(seed, models.NetworkTestnet)
	require.NoError(t, err)
	require.True(t, a.Equal(b))

	other, err := Path{Hardened(9), Hardened(1), Hardened256(idx), Normal256(idx), Normal(4)}.DerivePrivateKey(seed, models.NetworkTestnet)
	require.NoError(t, err)
	require.False(t, a.Equal(other))
}

func TestNetworkDoesNotChangeKeyMaterial(t *testing.T) {
	seed := bytes.Repeat([]byte{0x11}, 64)
	p := BIP44(models.NetworkTestnet, 0, 0, 0)

	test, err := p.DerivePrivateKey(seed, models.NetworkTestnet)
	require.NoError(t, err)
	main, err := p.DerivePrivateKey(seed, models.NetworkMainnet)
	require.NoError(t, err)
	require.True(t, test.Equal(main))

	extMain, err := p.DeriveExtended(seed, models.NetworkMainnet)
	require.NoError(t, err)
	extTest, err := p.DeriveExtended(seed, models.NetworkTestnet)
	require.NoError(t, err)
	require.NotEqual(t, extMain.String(), extTest.String())
}

func TestDerive256MatchesDIP14Layout(t *testing.T) {
	seed := bytes.Repeat([]byte{0x22}, 64)
	master, err := Path{}.DeriveExtended(seed, models.NetworkMainnet)
	require.NoError(t, err)
	masterPriv, err := master.ECPrivKey()
	require.NoError(t, err)
	k := masterPriv.Key.Bytes()

	var idx [32]byte
	idx[0] = 0x80
	idx[31] = 0x01

	expect := func(hardened bool) []byte {
		mac := hmac.New(sha512.New, master.ChainCode())
		if hardened {
			mac.Write([]byte{0})
			mac.Write(k[:])
		} else {
			mac.Write(masterPriv.PubKey().SerializeCompressed())
		}
		mac.Write(idx[:])
		sum := mac.Sum(nil)
		n := secp256k1.S256().Params().N
		v := new(big.Int).SetBytes(sum[:32])
		v.Add(v, new(big.Int).SetBytes(k[:]))
		v.Mod(v, n)
		out := make([]byte, 32)
		v.FillBytes(out)
		return out
	}

	hard, err := Path{Hardened256(idx)}.DerivePrivateKey(seed, models.NetworkMainnet)
	require.NoError(t, err)
	require.Equal(t, expect(true), hard.Bytes())

	norm, err := Path{Normal256(idx)}.DerivePrivateKey(seed, models.NetworkMainnet)
	require.NoError(t, err)
	require.Equal(t, expect(false), norm.Bytes())
}

// Golden keys for m/<i1>'/<i2>/0 from an independent pure-Python secp256k1
// implementation of BIP32 and DIP-14 CKDpriv.
func TestDerive256GoldenVector(t *testing.T) {
	seed := mustHex(t, "b16d3782e714da7c55a397d5f19104cfed7ffa8036ac514509bbb50807f8ac598eeb26f0797bd8cc221a6cbff2168d90a5e9ee025a5bd977977b9eccd97894bb")
	var i1, i2 [32]byte
	copy(i1[:], mustHex(t, "775d3854c910b7dee436869c4724bed2fe0784e198b8a39f02bbb49d8ebcfc3b"))
	copy(i2[:], mustHex(t, "f537439f36d04a15474ff7423e4b904a14373fafb37a41db74c84f1dbb5c89a6"))

	steps := []struct {
		path      Path
		key       string
		chainCode string
	}{
		{
			Path{Hardened256(i1)},
			"eba7572ddc4e0db6543a96de55fec9423912c106497c010598407f2750e47b85",
			"e1fbd2f0416dafe71d833f364266c068e0a899d40b9fb7a8fe5f23fa85c11677",
		},
		{
			Path{Hardened256(i1), Normal256(i2)},
			"7efe8e1a38fc67dd8a717f95f0a97a13ea800f5f9a47026fad903f71a1904c4f",
			"cc485e5a375afe2da4116d1cfa401b84285d959628a89740bf540b3412093ec2",
		},
		{
			Path{Hardened256(i1), Normal256(i2), Normal(0)},
			"d6ca8c214b14b2c693551c1892661ddc234f8f20e85413ab60ae4ddadeb431d8",
			"5dc185bdd03642a61529b73f77559037e936a47090594ea7a58e37dd58022cb9",
		},
	}
	for _, step := range steps {
		ext, err := step.path.DeriveExtended(seed, models.NetworkMainnet)
		require.NoError(t, err, step.path.String())
		priv, err := ext.ECPrivKey()
		require.NoError(t, err)
		k := priv.Key.Bytes()
		require.Equal(t, step.key, hex.EncodeToString(k[:]), step.path.String())
		require.Equal(t, step.chainCode, hex.EncodeToString(ext.ChainCode()), step.path.String())
	}
}

func TestDeriveContinuesAfter256BitStep(t *testing.T) {
	seed := bytes.Repeat([]byte{0x33}, 64)
	var id [32]byte
	id[5] = 7
	p := DashpayContact(models.NetworkTestnet, 0, id, id, 0)
	ext, err := p.DeriveExtended(seed, models.NetworkTestnet)
	require.NoError(t, err)
	require.Equal(t, uint8(len(p)), ext.Depth())
}

func TestDeriveRejectsOutOfRangeIndex(t *testing.T) {
	seed := bytes.Repeat([]byte{0x44}, 64)
	for _, c := range []ChildNumber{
		{kind: KindNormal, index: HardenedOffset},
		{kind: KindHardened, index: HardenedOffset + 5},
	} {
		_, err := Path{c}.DerivePrivateKey(seed, models.NetworkMainnet)
		require.ErrorIs(t, err, ErrDerivationFailed)
	}
}

func TestHashSeed(t *testing.T) {
	h := HashSeed([]byte("abc"))
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(h[:]))
}
