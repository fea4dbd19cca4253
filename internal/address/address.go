// Package address encodes Dash pay-to-pubkey-hash and pay-to-script-hash
// addresses from 20-byte hashes.
package address

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	pkgerrors "github.com/pkg/errors"

	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

type Kind uint8

const (
	PubKeyHash Kind = iota
	ScriptHash
)

func (k Kind) String() string {
	if k == ScriptHash {
		return "p2sh"
	}
	return "p2pkh"
}

const HashSize = 20

var (
	ErrInvalidHash    = errors.New("address hash must be 20 bytes")
	ErrInvalidAddress = errors.New("invalid address")
	ErrUnknownVersion = errors.New("unknown address version")
)

// Dash version bytes. Devnet and regtest share the testnet values.
const (
	mainnetPubKeyHash = 0x4c
	mainnetScriptHash = 0x10
	testnetPubKeyHash = 0x8c
	testnetScriptHash = 0x13
)

func version(network models.Network, kind Kind) byte {
	if network == models.NetworkMainnet {
		if kind == ScriptHash {
			return mainnetScriptHash
		}
		return mainnetPubKeyHash
	}
	if kind == ScriptHash {
		return testnetScriptHash
	}
	return testnetPubKeyHash
}

type Address struct {
	Network models.Network
	Kind    Kind
	Hash    [HashSize]byte
}

func New(network models.Network, kind Kind, hash []byte) (Address, error) {
	if len(hash) != HashSize {
		return Address{}, pkgerrors.Wrapf(ErrInvalidHash, "got %d bytes", len(hash))
	}
	a := Address{Network: network, Kind: kind}
	copy(a.Hash[:], hash)
	return a, nil
}

// FromPublicKey builds the P2PKH address of a serialized secp256k1 key.
func FromPublicKey(network models.Network, pubKey []byte) Address {
	a := Address{Network: network, Kind: PubKeyHash}
	copy(a.Hash[:], btcutil.Hash160(pubKey))
	return a
}

func (a Address) String() string {
	return base58.CheckEncode(a.Hash[:], version(a.Network, a.Kind))
}

// Decode parses a base58check address. Testnet version bytes decode as
// NetworkTestnet since devnet and regtest cannot be told apart.
func Decode(s string) (Address, error) {
	payload, ver, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, pkgerrors.Wrap(ErrInvalidAddress, err.Error())
	}
	var a Address
	switch ver {
	case mainnetPubKeyHash:
		a.Network, a.Kind = models.NetworkMainnet, PubKeyHash
	case mainnetScriptHash:
		a.Network, a.Kind = models.NetworkMainnet, ScriptHash
	case testnetPubKeyHash:
		a.Network, a.Kind = models.NetworkTestnet, PubKeyHash
	case testnetScriptHash:
		a.Network, a.Kind = models.NetworkTestnet, ScriptHash
	default:
		return Address{}, pkgerrors.Wrapf(ErrUnknownVersion, "0x%02x", ver)
	}
	if len(payload) != HashSize {
		return Address{}, pkgerrors.Wrapf(ErrInvalidHash, "got %d bytes", len(payload))
	}
	copy(a.Hash[:], payload)
	return a, nil
}
