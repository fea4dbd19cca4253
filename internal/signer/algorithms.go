package signer

import (
	"bytes"
	"crypto/ed25519"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	pkgerrors "github.com/pkg/errors"
	blst "github.com/supranational/blst/bindings/go"

	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

// BLSBasicDST is the domain separation tag of the BLS12-381 G2 Basic scheme.
var BLSBasicDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

const (
	// DigestSize is the length of a secp256k1 signing digest. ECDSA signs
	// the message as given and never hashes it.
	DigestSize = 32

	CompactSignatureSize = 65
	BLSSignatureSize     = 96
	BLSPublicKeySize     = 48
	Hash160Size          = 20
)

var (
	ErrUnsupportedKeyTypeForSigning = errors.New("key type cannot sign")
	ErrUnknownPublicKey             = errors.New("public key not found in key storage")
	ErrInvalidSecretKey             = errors.New("private key is not valid for key type")
	ErrInvalidDigest                = errors.New("ecdsa message must be a 32-byte digest")
	ErrInvalidSignature             = errors.New("signature verification failed")
	ErrInvalidPublicKey             = errors.New("public key data is malformed")
	ErrPublicKeyRequired            = errors.New("full public key required to verify against a hash")
)

// signWith dispatches on key type. The caller keeps ownership of k.
func signWith(keyType models.KeyType, k *secret.Key, message []byte) ([]byte, error) {
	switch keyType {
	case models.KeyTypeECDSASecp256k1, models.KeyTypeECDSAHash160:
		return signECDSA(k, message)
	case models.KeyTypeBLS12381:
		return signBLS(k, message)
	case models.KeyTypeEdDSA25519Hash160:
		return signEd25519(k, message), nil
	case models.KeyTypeBIP13ScriptHash:
		return nil, ErrUnsupportedKeyTypeForSigning
	default:
		return nil, pkgerrors.Wrap(ErrUnsupportedKeyTypeForSigning, keyType.String())
	}
}

// signECDSA returns a 65-byte compact recoverable signature with an RFC6979
// nonce, marked for a compressed public key.
func signECDSA(k *secret.Key, digest []byte) ([]byte, error) {
	if len(digest) != DigestSize {
		return nil, pkgerrors.Wrapf(ErrInvalidDigest, "got %d bytes", len(digest))
	}
	priv, err := secpPrivateKey(k)
	if err != nil {
		return nil, err
	}
	defer priv.Zero()
	return ecdsa.SignCompact(priv, digest, true), nil
}

func signBLS(k *secret.Key, message []byte) ([]byte, error) {
	sk := new(blst.SecretKey).Deserialize(k.Bytes())
	if sk == nil {
		return nil, pkgerrors.Wrap(ErrInvalidSecretKey, "bls12-381 scalar out of range")
	}
	defer sk.Zeroize()
	sig := new(blst.P2Affine).Sign(sk, message, BLSBasicDST)
	if sig == nil {
		return nil, pkgerrors.Wrap(ErrInvalidSecretKey, "bls12-381 sign")
	}
	return sig.Compress(), nil
}

func signEd25519(k *secret.Key, message []byte) []byte {
	priv := ed25519.NewKeyFromSeed(k.Bytes())
	defer secret.Wipe(priv)
	return ed25519.Sign(priv, message)
}

func secpPrivateKey(k *secret.Key) (*secp256k1.PrivateKey, error) {
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(k.Bytes()); overflow || scalar.IsZero() {
		return nil, pkgerrors.Wrap(ErrInvalidSecretKey, "secp256k1 scalar out of range")
	}
	return secp256k1.NewPrivateKey(&scalar), nil
}

// FullPublicKey returns the public key a hash key type would hash:
// 33-byte compressed secp256k1, 48-byte compressed G1 or 32-byte Ed25519.
func FullPublicKey(keyType models.KeyType, k *secret.Key) ([]byte, error) {
	switch keyType {
	case models.KeyTypeECDSASecp256k1, models.KeyTypeECDSAHash160:
		priv, err := secpPrivateKey(k)
		if err != nil {
			return nil, err
		}
		defer priv.Zero()
		return priv.PubKey().SerializeCompressed(), nil
	case models.KeyTypeBLS12381:
		sk := new(blst.SecretKey).Deserialize(k.Bytes())
		if sk == nil {
			return nil, pkgerrors.Wrap(ErrInvalidSecretKey, "bls12-381 scalar out of range")
		}
		defer sk.Zeroize()
		return new(blst.P1Affine).From(sk).Compress(), nil
	case models.KeyTypeEdDSA25519Hash160:
		priv := ed25519.NewKeyFromSeed(k.Bytes())
		defer secret.Wipe(priv)
		return append([]byte(nil), priv.Public().(ed25519.PublicKey)...), nil
	default:
		return nil, pkgerrors.Wrap(ErrUnsupportedKeyTypeForSigning, keyType.String())
	}
}

// PublicKeyData returns the value stored in a descriptor's Data field for
// the given secret. Hash key types store HASH160 of the full public key.
func PublicKeyData(keyType models.KeyType, k *secret.Key) ([]byte, error) {
	full, err := FullPublicKey(keyType, k)
	if err != nil {
		return nil, err
	}
	if keyType.IsHash() {
		return btcutil.Hash160(full), nil
	}
	return full, nil
}

// Verify checks a signature against descriptor public key data. For
// EdDSA25519Hash160 the full 32-byte key must be supplied instead of the hash.
func Verify(keyType models.KeyType, publicKeyData, message, signature []byte) error {
	switch keyType {
	case models.KeyTypeECDSASecp256k1, models.KeyTypeECDSAHash160:
		if len(message) != DigestSize {
			return pkgerrors.Wrapf(ErrInvalidDigest, "got %d bytes", len(message))
		}
		if keyType == models.KeyTypeECDSASecp256k1 {
			if _, err := btcec.ParsePubKey(publicKeyData); err != nil {
				return pkgerrors.Wrap(ErrInvalidPublicKey, err.Error())
			}
		}
		pub, compressed, err := ecdsa.RecoverCompact(signature, message)
		if err != nil || !compressed {
			return ErrInvalidSignature
		}
		recovered := pub.SerializeCompressed()
		if keyType == models.KeyTypeECDSAHash160 {
			recovered = btcutil.Hash160(recovered)
		}
		if !bytes.Equal(recovered, publicKeyData) {
			return ErrInvalidSignature
		}
		return nil
	case models.KeyTypeBLS12381:
		if len(publicKeyData) != BLSPublicKeySize || len(signature) != BLSSignatureSize {
			return ErrInvalidPublicKey
		}
		pk := new(blst.P1Affine).Uncompress(publicKeyData)
		if pk == nil {
			return ErrInvalidPublicKey
		}
		sig := new(blst.P2Affine).Uncompress(signature)
		if sig == nil || !sig.Verify(true, pk, true, message, BLSBasicDST) {
			return ErrInvalidSignature
		}
		return nil
	case models.KeyTypeEdDSA25519Hash160:
		if len(publicKeyData) == Hash160Size {
			return ErrPublicKeyRequired
		}
		if len(publicKeyData) != ed25519.PublicKeySize {
			return ErrInvalidPublicKey
		}
		if !ed25519.Verify(publicKeyData, message, signature) {
			return ErrInvalidSignature
		}
		return nil
	default:
		return pkgerrors.Wrap(ErrUnsupportedKeyTypeForSigning, keyType.String())
	}
}
