package hdpath

import (
	"crypto/sha256"
	"strings"

	"github.com/pkg/errors"

	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

var (
	ErrInvalidPath        = errors.New("invalid derivation path")
	ErrUnsupportedKeyType = errors.New("key type has no identity derivation path")
)

// SeedHash identifies a wallet seed: SHA-256 of the raw seed bytes.
type SeedHash [32]byte

func HashSeed(seed []byte) SeedHash {
	return SeedHash(sha256.Sum256(seed))
}

// Path is an ordered list of child numbers below the master key.
type Path []ChildNumber

func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range p {
		b.WriteByte('/')
		b.WriteString(c.String())
	}
	return b.String()
}

func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Child returns a new path with c appended.
func (p Path) Child(c ChildNumber) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, c)
}

func ParsePath(raw string) (Path, error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, "/")
	if len(parts) == 0 || (parts[0] != "m" && parts[0] != "M") {
		return nil, errors.Wrapf(ErrInvalidPath, "%q must start with m", raw)
	}
	out := make(Path, 0, len(parts)-1)
	for _, part := range parts[1:] {
		c, err := ParseChildNumber(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

const (
	featurePurposeDIP9      = 9
	featurePurposeBIP44     = 44
	featureIdentities       = 5
	featureDashpay          = 15
	identityAuthSubFeature  = 0
	identityRegSubFeature   = 1
	identityTopUpSubFeature = 2
)

// BIP44 builds m/44'/coin'/account'/change/index.
func BIP44(network models.Network, account, change, index uint32) Path {
	return Path{
		Hardened(featurePurposeBIP44),
		Hardened(network.CoinType()),
		Hardened(account),
		Normal(change),
		Normal(index),
	}
}

// IdentityAuthentication builds m/9'/coin'/5'/0'/0'/identity'/key'.
// Only ECDSA key types have a path here: the derivation is BIP32 over
// secp256k1, whose scalars are not valid BLS12-381 secret keys.
func IdentityAuthentication(network models.Network, keyType models.KeyType, identityIndex, keyIndex uint32) (Path, error) {
	const derivationTypeECDSA = 0
	switch keyType {
	case models.KeyTypeECDSASecp256k1, models.KeyTypeECDSAHash160:
	default:
		return nil, errors.Wrap(ErrUnsupportedKeyType, keyType.String())
	}
	return Path{
		Hardened(featurePurposeDIP9),
		Hardened(network.CoinType()),
		Hardened(featureIdentities),
		Hardened(identityAuthSubFeature),
		Hardened(derivationTypeECDSA),
		Hardened(identityIndex),
		Hardened(keyIndex),
	}, nil
}

// IdentityRegistrationFunding builds m/9'/coin'/5'/1'/index'.
func IdentityRegistrationFunding(network models.Network, index uint32) Path {
	return identitySubFeature(network, identityRegSubFeature, index)
}

// IdentityTopUpFunding builds m/9'/coin'/5'/2'/index'.
func IdentityTopUpFunding(network models.Network, index uint32) Path {
	return identitySubFeature(network, identityTopUpSubFeature, index)
}

func identitySubFeature(network models.Network, sub, index uint32) Path {
	return Path{
		Hardened(featurePurposeDIP9),
		Hardened(network.CoinType()),
		Hardened(featureIdentities),
		Hardened(sub),
		Hardened(index),
	}
}

// DashpayContact builds the DIP-15 incoming funds path
// m/9'/coin'/15'/account'/(sender)'/(recipient)'/index using 256-bit
// identity ids as child indices.
func DashpayContact(network models.Network, account uint32, sender, recipient [32]byte, index uint32) Path {
	return Path{
		Hardened(featurePurposeDIP9),
		Hardened(network.CoinType()),
		Hardened(featureDashpay),
		Hardened(account),
		Hardened256(sender),
		Hardened256(recipient),
		Normal(index),
	}
}

// WalletDerivationPath locates a key inside a specific wallet.
type WalletDerivationPath struct {
	SeedHash SeedHash
	Path     Path
}

func (w WalletDerivationPath) Equal(other WalletDerivationPath) bool {
	return w.SeedHash == other.SeedHash && w.Path.Equal(other.Path)
}
