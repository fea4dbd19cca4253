package models

import (
	"fmt"
	"strings"
)

type Purpose uint8

const (
	PurposeAuthentication Purpose = iota
	PurposeEncryption
	PurposeDecryption
	PurposeTransfer
	PurposeSystem
	PurposeVoting
	PurposeOwner
)

var purposeNames = []string{"AUTHENTICATION", "ENCRYPTION", "DECRYPTION", "TRANSFER", "SYSTEM", "VOTING", "OWNER"}

func (p Purpose) String() string {
	if int(p) < len(purposeNames) {
		return purposeNames[p]
	}
	return fmt.Sprintf("Purpose(%d)", uint8(p))
}

func (p Purpose) Valid() bool { return int(p) < len(purposeNames) }

func ParsePurpose(raw string) (Purpose, error) {
	i, err := parseName(purposeNames, raw)
	if err != nil {
		return 0, fmt.Errorf("purpose: %w", err)
	}
	return Purpose(i), nil
}

type SecurityLevel uint8

const (
	SecurityLevelMaster SecurityLevel = iota
	SecurityLevelCritical
	SecurityLevelHigh
	SecurityLevelMedium
)

var securityLevelNames = []string{"MASTER", "CRITICAL", "HIGH", "MEDIUM"}

func (s SecurityLevel) String() string {
	if int(s) < len(securityLevelNames) {
		return securityLevelNames[s]
	}
	return fmt.Sprintf("SecurityLevel(%d)", uint8(s))
}

func (s SecurityLevel) Valid() bool { return int(s) < len(securityLevelNames) }

func ParseSecurityLevel(raw string) (SecurityLevel, error) {
	i, err := parseName(securityLevelNames, raw)
	if err != nil {
		return 0, fmt.Errorf("security level: %w", err)
	}
	return SecurityLevel(i), nil
}

type KeyType uint8

const (
	KeyTypeECDSASecp256k1 KeyType = iota
	KeyTypeBLS12381
	KeyTypeECDSAHash160
	KeyTypeBIP13ScriptHash
	KeyTypeEdDSA25519Hash160
)

var keyTypeNames = []string{"ECDSA_SECP256K1", "BLS12_381", "ECDSA_HASH160", "BIP13_SCRIPT_HASH", "EDDSA_25519_HASH160"}

func (k KeyType) String() string {
	if int(k) < len(keyTypeNames) {
		return keyTypeNames[k]
	}
	return fmt.Sprintf("KeyType(%d)", uint8(k))
}

func (k KeyType) Valid() bool { return int(k) < len(keyTypeNames) }

// IsHash reports whether descriptor data holds a hash rather than a full public key.
func (k KeyType) IsHash() bool {
	switch k {
	case KeyTypeECDSAHash160, KeyTypeBIP13ScriptHash, KeyTypeEdDSA25519Hash160:
		return true
	default:
		return false
	}
}

func ParseKeyType(raw string) (KeyType, error) {
	i, err := parseName(keyTypeNames, raw)
	if err != nil {
		return 0, fmt.Errorf("key type: %w", err)
	}
	return KeyType(i), nil
}

type Network uint8

const (
	NetworkMainnet Network = iota
	NetworkTestnet
	NetworkDevnet
	NetworkRegtest
)

var networkNames = []string{"mainnet", "testnet", "devnet", "regtest"}

func (n Network) String() string {
	if int(n) < len(networkNames) {
		return networkNames[n]
	}
	return fmt.Sprintf("Network(%d)", uint8(n))
}

func (n Network) Valid() bool { return int(n) < len(networkNames) }

// CoinType is the BIP44/DIP9 coin type used in derivation paths.
func (n Network) CoinType() uint32 {
	if n == NetworkMainnet {
		return 5
	}
	return 1
}

func ParseNetwork(raw string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dash", "main":
		return NetworkMainnet, nil
	case "local":
		return NetworkRegtest, nil
	}
	i, err := parseName(networkNames, raw)
	if err != nil {
		return 0, fmt.Errorf("network: %w", err)
	}
	return Network(i), nil
}

type IdentityType uint8

const (
	IdentityTypeUser IdentityType = iota
	IdentityTypeMasternode
	IdentityTypeEvonode
)

var identityTypeNames = []string{"User", "Masternode", "Evonode"}

func (t IdentityType) String() string {
	if int(t) < len(identityTypeNames) {
		return identityTypeNames[t]
	}
	return fmt.Sprintf("IdentityType(%d)", uint8(t))
}

func (t IdentityType) Valid() bool { return int(t) < len(identityTypeNames) }

// VoteStrength is the weight of a contested-resource vote cast by an identity
// of this type.
func (t IdentityType) VoteStrength() uint64 {
	if t == IdentityTypeEvonode {
		return 4
	}
	return 1
}

func ParseIdentityType(raw string) (IdentityType, error) {
	i, err := parseName(identityTypeNames, raw)
	if err != nil {
		return 0, fmt.Errorf("identity type: %w", err)
	}
	return IdentityType(i), nil
}

func parseName(names []string, raw string) (int, error) {
	normalized := strings.TrimSpace(raw)
	for i, name := range names {
		if strings.EqualFold(name, normalized) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown value %q", raw)
}
