package hdpath

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"

	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

var ErrDerivationFailed = errors.New("key derivation failed")

// ChainParams maps a network to the params that select extended key version
// bytes. Devnets share testnet versions.
func ChainParams(network models.Network) *chaincfg.Params {
	switch network {
	case models.NetworkMainnet:
		return &chaincfg.MainNetParams
	case models.NetworkRegtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.TestNet3Params
	}
}

// DeriveExtended walks p from the master key of seed. 32-bit children use
// BIP32; 256-bit children use DIP-14.
func (p Path) DeriveExtended(seed []byte, network models.Network) (*hdkeychain.ExtendedKey, error) {
	params := ChainParams(network)
	key, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, errors.Wrap(ErrDerivationFailed, err.Error())
	}
	for i, c := range p {
		next, err := deriveChild(key, c, params)
		key.Zero()
		if err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", i, c)
		}
		key = next
	}
	return key, nil
}

// DerivePrivateKey returns the raw private scalar at p. The caller owns the
// returned key and must destroy it.
func (p Path) DerivePrivateKey(seed []byte, network models.Network) (*secret.Key, error) {
	ext, err := p.DeriveExtended(seed, network)
	if err != nil {
		return nil, err
	}
	defer ext.Zero()
	priv, err := ext.ECPrivKey()
	if err != nil {
		return nil, errors.Wrap(ErrDerivationFailed, err.Error())
	}
	raw := priv.Key.Bytes()
	priv.Zero()
	return secret.FromArray(&raw), nil
}

func deriveChild(parent *hdkeychain.ExtendedKey, c ChildNumber, params *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {
	switch c.kind {
	case KindNormal, KindHardened:
		if c.index >= HardenedOffset {
			return nil, errors.Wrapf(ErrDerivationFailed, "index %d out of range", c.index)
		}
		idx := c.index
		if c.kind == KindHardened {
			idx += hdkeychain.HardenedKeyStart
		}
		child, err := parent.Derive(idx)
		if err != nil {
			return nil, errors.Wrap(ErrDerivationFailed, err.Error())
		}
		return child, nil
	case KindNormal256, KindHardened256:
		return derive256(parent, c, params)
	default:
		return nil, errors.Wrapf(ErrInvalidChildNumberTag, "kind %d", c.kind)
	}
}

// derive256 implements DIP-14 private child derivation:
// hardened: HMAC-SHA512(c, 0x00 || k || i256), normal: HMAC-SHA512(c, K || i256).
func derive256(parent *hdkeychain.ExtendedKey, c ChildNumber, params *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {
	if parent.Depth() == 255 {
		return nil, errors.Wrap(ErrDerivationFailed, hdkeychain.ErrDeriveBeyondMaxDepth.Error())
	}
	priv, err := parent.ECPrivKey()
	if err != nil {
		return nil, errors.Wrap(ErrDerivationFailed, err.Error())
	}
	defer priv.Zero()
	k := priv.Key.Bytes()
	defer secret.Wipe(k[:])
	pub := priv.PubKey().SerializeCompressed()

	mac := hmac.New(sha512.New, parent.ChainCode())
	if c.kind == KindHardened256 {
		mac.Write([]byte{0x00})
		mac.Write(k[:])
	} else {
		mac.Write(pub)
	}
	mac.Write(c.index256[:])
	sum := mac.Sum(nil)
	defer secret.Wipe(sum)

	var il secp256k1.ModNScalar
	if overflow := il.SetByteSlice(sum[:32]); overflow {
		return nil, errors.Wrap(ErrDerivationFailed, "derived scalar overflows curve order")
	}
	il.Add(&priv.Key)
	if il.IsZero() {
		return nil, errors.Wrap(ErrDerivationFailed, "derived scalar is zero")
	}
	child := il.Bytes()
	il.Zero()
	defer secret.Wipe(child[:])

	// NewExtendedKey keeps the slices it is given.
	childKey := make([]byte, 32)
	copy(childKey, child[:])
	chainCode := make([]byte, 32)
	copy(chainCode, sum[32:])

	fingerprint := btcutil.Hash160(pub)[:4]
	return hdkeychain.NewExtendedKey(
		params.HDPrivateKeyID[:],
		childKey,
		chainCode,
		fingerprint,
		parent.Depth()+1,
		childIndexHint(c),
		true,
	), nil
}

// childIndexHint fills the 32-bit child number field of an extended key built
// from a 256-bit step. It only affects serialization.
func childIndexHint(c ChildNumber) uint32 {
	idx := binary.BigEndian.Uint32(c.index256[28:]) &^ hdkeychain.HardenedKeyStart
	if c.kind == KindHardened256 {
		idx |= hdkeychain.HardenedKeyStart
	}
	return idx
}

// DerivePrivateKey resolves a wallet path against the seed it names. The
// caller guarantees seed hashes to w.SeedHash.
func (w WalletDerivationPath) DerivePrivateKey(seed []byte, network models.Network) (*secret.Key, error) {
	return w.Path.DerivePrivateKey(seed, network)
}
