package models

import (
	"bytes"
	"sort"
)

// KeyID is the identity-scoped numeric id of a public key.
type KeyID uint32

// IdentityIDSize is the length of an identity identifier.
const IdentityIDSize = 32

type IdentityID [IdentityIDSize]byte

// IdentityPublicKey describes one public key registered on an identity. It
// carries no secret material and is never modified after load.
type IdentityPublicKey struct {
	ID            KeyID         `json:"id"`
	Purpose       Purpose       `json:"purpose"`
	SecurityLevel SecurityLevel `json:"security_level"`
	KeyType       KeyType       `json:"key_type"`
	ReadOnly      bool          `json:"read_only"`
	Data          []byte        `json:"data"`
	DisabledAt    *uint64       `json:"disabled_at,omitempty"`
}

func (k IdentityPublicKey) IsDisabled() bool {
	return k.DisabledAt != nil
}

// Equal compares every descriptor field including the key data.
func (k IdentityPublicKey) Equal(other IdentityPublicKey) bool {
	if k.ID != other.ID || k.Purpose != other.Purpose || k.SecurityLevel != other.SecurityLevel ||
		k.KeyType != other.KeyType || k.ReadOnly != other.ReadOnly {
		return false
	}
	if (k.DisabledAt == nil) != (other.DisabledAt == nil) {
		return false
	}
	if k.DisabledAt != nil && *k.DisabledAt != *other.DisabledAt {
		return false
	}
	return bytes.Equal(k.Data, other.Data)
}

type Identity struct {
	ID         IdentityID                  `json:"id"`
	Balance    uint64                      `json:"balance"`
	Revision   uint64                      `json:"revision"`
	PublicKeys map[KeyID]IdentityPublicKey `json:"public_keys"`
}

// SortedPublicKeys returns the identity keys ordered by key id.
func (i Identity) SortedPublicKeys() []IdentityPublicKey {
	out := make([]IdentityPublicKey, 0, len(i.PublicKeys))
	for _, k := range i.PublicKeys {
		out = append(out, k)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}
