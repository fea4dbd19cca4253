// Package secret holds raw private key material that must be wiped once it
// is no longer needed.
package secret

import (
	"crypto/subtle"
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// KeySize is the length of a raw scalar private key.
const KeySize = 32

var ErrInvalidKeySize = errors.New("secret key must be 32 bytes")

// Key is a 32-byte private key. The zero value is not usable; build one with
// NewKey or FromArray. Copies of a *Key share the same backing memory.
type Key struct {
	mu        sync.RWMutex
	buf       []byte
	destroyed bool
}

// NewKey copies raw into a fresh buffer. The caller still owns raw.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		return nil, ErrInvalidKeySize
	}
	buf := make([]byte, KeySize)
	copy(buf, raw)
	return &Key{buf: buf}, nil
}

// FromArray moves the array contents into a Key and wipes the source.
func FromArray(raw *[KeySize]byte) *Key {
	buf := make([]byte, KeySize)
	copy(buf, raw[:])
	memguard.WipeBytes(raw[:])
	return &Key{buf: buf}
}

// Bytes exposes the backing slice. It is valid until Destroy is called.
func (k *Key) Bytes() []byte {
	if k == nil {
		return nil
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.buf
}

// Array returns a copy of the key. The caller must wipe it.
func (k *Key) Array() [KeySize]byte {
	var out [KeySize]byte
	k.mu.RLock()
	copy(out[:], k.buf)
	k.mu.RUnlock()
	return out
}

// Clone returns an independent copy that must be destroyed separately.
func (k *Key) Clone() *Key {
	k.mu.RLock()
	defer k.mu.RUnlock()
	buf := make([]byte, len(k.buf))
	copy(buf, k.buf)
	return &Key{buf: buf, destroyed: k.destroyed}
}

// Equal compares two keys in constant time.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return k == other
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()
	return subtle.ConstantTimeCompare(k.buf, other.buf) == 1
}

// Destroy zeroes the backing memory. Destroy is idempotent.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	memguard.WipeBytes(k.buf)
	k.destroyed = true
}

func (k *Key) Destroyed() bool {
	if k == nil {
		return true
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.destroyed
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}

// String never prints key material.
func (k *Key) String() string {
	return "secret.Key([REDACTED])"
}
