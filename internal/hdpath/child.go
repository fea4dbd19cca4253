package hdpath

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// HardenedOffset is the BIP32 hardened index base. 32-bit indices at or above
// it are rejected; hardening is carried by the child kind instead.
const HardenedOffset uint32 = 1 << 31

// ChildKind doubles as the wire tag of a child number.
type ChildKind uint8

const (
	KindNormal ChildKind = iota
	KindHardened
	KindNormal256
	KindHardened256
)

func (k ChildKind) Valid() bool { return k <= KindHardened256 }

func (k ChildKind) Is256() bool { return k == KindNormal256 || k == KindHardened256 }

func (k ChildKind) Hardened() bool { return k == KindHardened || k == KindHardened256 }

// ChildNumber is one step of a derivation path.
type ChildNumber struct {
	kind     ChildKind
	index    uint32
	index256 [32]byte
}

func Normal(index uint32) ChildNumber   { return ChildNumber{kind: KindNormal, index: index} }
func Hardened(index uint32) ChildNumber { return ChildNumber{kind: KindHardened, index: index} }

func Normal256(index [32]byte) ChildNumber {
	return ChildNumber{kind: KindNormal256, index256: index}
}

func Hardened256(index [32]byte) ChildNumber {
	return ChildNumber{kind: KindHardened256, index256: index}
}

func (c ChildNumber) Kind() ChildKind    { return c.kind }
func (c ChildNumber) IsHardened() bool   { return c.kind.Hardened() }
func (c ChildNumber) Index() uint32      { return c.index }
func (c ChildNumber) Index256() [32]byte { return c.index256 }

func (c ChildNumber) String() string {
	var s string
	if c.kind.Is256() {
		s = "0x" + hex.EncodeToString(c.index256[:])
	} else {
		s = strconv.FormatUint(uint64(c.index), 10)
	}
	if c.IsHardened() {
		s += "'"
	}
	return s
}

// ParseChildNumber accepts "5", "44'", "44h" and 0x-prefixed 64-digit hex
// for 256-bit indices.
func ParseChildNumber(raw string) (ChildNumber, error) {
	s := strings.TrimSpace(raw)
	hardened := false
	if strings.HasSuffix(s, "'") || strings.HasSuffix(s, "h") || strings.HasSuffix(s, "H") {
		hardened = true
		s = s[:len(s)-1]
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hex.DecodeString(s[2:])
		if err != nil || len(b) != 32 {
			return ChildNumber{}, errors.Wrapf(ErrInvalidPath, "bad 256-bit index %q", raw)
		}
		var idx [32]byte
		copy(idx[:], b)
		if hardened {
			return Hardened256(idx), nil
		}
		return Normal256(idx), nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return ChildNumber{}, errors.Wrapf(ErrInvalidPath, "bad index %q", raw)
	}
	if uint32(v) >= HardenedOffset {
		return ChildNumber{}, errors.Wrapf(ErrInvalidPath, "index %d out of range", v)
	}
	if hardened {
		return Hardened(uint32(v)), nil
	}
	return Normal(uint32(v)), nil
}

func (c ChildNumber) GoString() string {
	return fmt.Sprintf("hdpath.ChildNumber(%s)", c.String())
}
