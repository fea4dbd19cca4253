// Package securestore seals small secrets under a passphrase with argon2id
// and XChaCha20-Poly1305.
package securestore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
)

// SealedPrefix marks the output of Seal.
const SealedPrefix = "DETKEY1\n"

const (
	envelopeVersion = 1
	saltSize        = 16
	kdfArgon2id     = "argon2id"
)

var (
	// ErrAuthFailed covers both a wrong passphrase and tampered ciphertext.
	ErrAuthFailed = errors.New("securestore authentication failed")
	ErrInvalid    = errors.New("securestore envelope is invalid")
	ErrNotSealed  = errors.New("securestore data has no envelope prefix")
)

type KDFParams struct {
	Time     uint32 `json:"time" yaml:"time"`
	MemoryKB uint32 `json:"memory_kb" yaml:"memoryKB"`
	Threads  uint8  `json:"threads" yaml:"threads"`
}

func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 2, MemoryKB: 64 * 1024, Threads: 1}
}

// Upper bounds on argon2 cost. Envelopes are read from disk, so these also cap
// what a corrupted or edited record can make DecryptEnvelope allocate.
const (
	MaxKDFTime     = 16
	MaxKDFMemoryKB = 1 << 20
	MaxKDFThreads  = 16
)

func (p KDFParams) Valid() bool {
	return p.Time > 0 && p.Time <= MaxKDFTime &&
		p.MemoryKB >= 8 && p.MemoryKB <= MaxKDFMemoryKB &&
		p.Threads > 0 && p.Threads <= MaxKDFThreads
}

type Envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func (e *Envelope) Params() KDFParams {
	return KDFParams{Time: e.KDFTime, MemoryKB: e.KDFMemoryKB, Threads: e.KDFThreads}
}

// Clone returns a deep copy.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	out := *e
	out.Salt = append([]byte(nil), e.Salt...)
	out.Nonce = append([]byte(nil), e.Nonce...)
	out.Ciphertext = append([]byte(nil), e.Ciphertext...)
	return &out
}

// Seal encrypts plaintext and returns the prefixed JSON file form.
func Seal(passphrase, plaintext []byte, params KDFParams) ([]byte, error) {
	env, err := EncryptEnvelope(passphrase, plaintext, params)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(SealedPrefix), raw...), nil
}

func EncryptEnvelope(passphrase, plaintext []byte, params KDFParams) (*Envelope, error) {
	if !params.Valid() {
		return nil, pkgerrors.Wrap(ErrInvalid, "kdf parameters")
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt, params)
	defer secret.Wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return &Envelope{
		Version:     envelopeVersion,
		KDF:         kdfArgon2id,
		KDFTime:     params.Time,
		KDFMemoryKB: params.MemoryKB,
		KDFThreads:  params.Threads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
	}, nil
}

// Open reverses Seal.
func Open(passphrase, data []byte) ([]byte, error) {
	if !strings.HasPrefix(string(data), SealedPrefix) {
		return nil, ErrNotSealed
	}
	data = data[len(SealedPrefix):]
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrInvalid
	}
	return DecryptEnvelope(passphrase, &env)
}

func DecryptEnvelope(passphrase []byte, env *Envelope) ([]byte, error) {
	if env == nil || env.Version != envelopeVersion || env.KDF != kdfArgon2id || !env.Params().Valid() {
		return nil, ErrInvalid
	}
	if len(env.Nonce) != chacha20poly1305.NonceSizeX || len(env.Salt) == 0 {
		return nil, ErrInvalid
	}
	key := deriveKey(passphrase, env.Salt, env.Params())
	defer secret.Wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func deriveKey(passphrase, salt []byte, params KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, params.Time, params.MemoryKB, params.Threads, chacha20poly1305.KeySize)
}
