// Package keystore holds the private keys of one identity and resolves them to
// raw key material on demand.
package keystore

import (
	"encoding/hex"
	"fmt"

	"github.com/dashpay/dash-evo-tool-sub003/internal/hdpath"
	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

// PrivateKeyTarget names which of an identity's roles a key belongs to.
type PrivateKeyTarget uint8

const (
	TargetMainIdentity PrivateKeyTarget = iota
	TargetVoterIdentity
	TargetOperatorIdentity
)

func (t PrivateKeyTarget) String() string {
	switch t {
	case TargetMainIdentity:
		return "main"
	case TargetVoterIdentity:
		return "voter"
	case TargetOperatorIdentity:
		return "operator"
	default:
		return fmt.Sprintf("target(%d)", uint8(t))
	}
}

func (t PrivateKeyTarget) Valid() bool { return t <= TargetOperatorIdentity }

// TargetForPurpose maps voting keys to the voter identity and everything else
// to the main identity.
func TargetForPurpose(p models.Purpose) PrivateKeyTarget {
	if p == models.PurposeVoting {
		return TargetVoterIdentity
	}
	return TargetMainIdentity
}

type KeyIdentifier struct {
	Target PrivateKeyTarget
	ID     models.KeyID
}

func (k KeyIdentifier) String() string {
	return fmt.Sprintf("%s/%d", k.Target, k.ID)
}

// Less orders identifiers by target, then key id.
func (k KeyIdentifier) Less(other KeyIdentifier) bool {
	if k.Target != other.Target {
		return k.Target < other.Target
	}
	return k.ID < other.ID
}

// QualifiedPublicKey is a public key descriptor plus the wallet location its
// private key was derived from, when known.
type QualifiedPublicKey struct {
	Key      models.IdentityPublicKey
	InWallet *hdpath.WalletDerivationPath
}

func (q QualifiedPublicKey) Clone() QualifiedPublicKey {
	out := q
	out.Key.Data = append([]byte(nil), q.Key.Data...)
	if q.Key.DisabledAt != nil {
		at := *q.Key.DisabledAt
		out.Key.DisabledAt = &at
	}
	if q.InWallet != nil {
		wp := hdpath.WalletDerivationPath{SeedHash: q.InWallet.SeedHash, Path: append(hdpath.Path(nil), q.InWallet.Path...)}
		out.InWallet = &wp
	}
	return out
}

// PrivateKeyData is the storage form of a private key. The concrete types are
// AlwaysClear, Clear, Encrypted and AtWalletDerivationPath.
type PrivateKeyData interface {
	variant() variantTag
	fmt.Stringer
}

type variantTag uint8

const (
	tagAlwaysClear variantTag = iota
	tagClear
	tagEncrypted
	tagAtWalletDerivationPath
)

var variantNames = [...]string{"always_clear", "clear", "encrypted", "wallet_path"}

func (v variantTag) String() string {
	if int(v) < len(variantNames) {
		return variantNames[v]
	}
	return "unknown"
}

// AlwaysClear holds MEDIUM security keys, which are never encrypted.
type AlwaysClear struct{ Key *secret.Key }

type Clear struct{ Key *secret.Key }

// Encrypted is opaque ciphertext. It cannot be resolved here.
type Encrypted struct{ Ciphertext []byte }

type AtWalletDerivationPath struct{ Path hdpath.WalletDerivationPath }

func (AlwaysClear) variant() variantTag            { return tagAlwaysClear }
func (Clear) variant() variantTag                  { return tagClear }
func (Encrypted) variant() variantTag              { return tagEncrypted }
func (AtWalletDerivationPath) variant() variantTag { return tagAtWalletDerivationPath }

func (AlwaysClear) String() string { return "AlwaysClear([REDACTED])" }
func (Clear) String() string       { return "Clear([REDACTED])" }

func (e Encrypted) String() string {
	return fmt.Sprintf("Encrypted(%d bytes)", len(e.Ciphertext))
}

func (a AtWalletDerivationPath) String() string {
	return fmt.Sprintf("AtWalletDerivationPath(%s/%s)", hex.EncodeToString(a.Path.SeedHash[:]), a.Path.Path)
}

// WalletPath returns the wallet location d resolves from. The second result is
// false for variants that carry their own key bytes.
func WalletPath(d PrivateKeyData) (hdpath.WalletDerivationPath, bool) {
	v, ok := d.(AtWalletDerivationPath)
	if !ok {
		return hdpath.WalletDerivationPath{}, false
	}
	return v.Path, true
}

func destroyData(d PrivateKeyData) {
	switch v := d.(type) {
	case AlwaysClear:
		v.Key.Destroy()
	case Clear:
		v.Key.Destroy()
	case Encrypted:
		secret.Wipe(v.Ciphertext)
	}
}

// ResolvedKey is a descriptor with its raw private key. Callers must Destroy it.
type ResolvedKey struct {
	Public QualifiedPublicKey
	Secret *secret.Key
}

func (r *ResolvedKey) Destroy() {
	if r == nil {
		return
	}
	r.Secret.Destroy()
}
