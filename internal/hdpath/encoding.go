package hdpath

import (
	"github.com/pkg/errors"

	"github.com/dashpay/dash-evo-tool-sub003/internal/codec"
)

var ErrInvalidChildNumberTag = errors.New("invalid child number tag")

// maxPathLen bounds encoded and decoded paths; BIP32 depth is a single byte.
const maxPathLen = 255

// Validate returns ErrInvalidPath for a path too long to encode.
func (p Path) Validate() error {
	if len(p) > maxPathLen {
		return errors.Wrapf(ErrInvalidPath, "path length %d", len(p))
	}
	return nil
}

// EncodeTo writes the child tag followed by its payload.
func (c ChildNumber) EncodeTo(w *codec.Writer) {
	w.PutByte(byte(c.kind))
	if c.kind.Is256() {
		w.PutFixed(c.index256[:])
		return
	}
	w.PutUint32(c.index)
}

// DecodeChildNumber reads one tagged child number from r.
func DecodeChildNumber(r *codec.Reader) (ChildNumber, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return ChildNumber{}, err
	}
	kind := ChildKind(tag)
	if !kind.Valid() {
		return ChildNumber{}, errors.Wrapf(ErrInvalidChildNumberTag, "tag %d", tag)
	}
	c := ChildNumber{kind: kind}
	if kind.Is256() {
		if err := r.Fixed(c.index256[:]); err != nil {
			return ChildNumber{}, err
		}
		return c, nil
	}
	if c.index, err = r.Uint32(); err != nil {
		return ChildNumber{}, err
	}
	return c, nil
}

// EncodeTo writes the child count and children. Callers that cannot rule out
// over-long paths check Validate first.
func (p Path) EncodeTo(w *codec.Writer) {
	w.PutUvarint(uint64(len(p)))
	for _, c := range p {
		c.EncodeTo(w)
	}
}

func DecodePath(r *codec.Reader) (Path, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if n > maxPathLen {
		return nil, errors.Wrapf(ErrInvalidPath, "path length %d", n)
	}
	out := make(Path, 0, n)
	for i := uint64(0); i < n; i++ {
		c, err := DecodeChildNumber(r)
		if err != nil {
			return nil, errors.Wrapf(err, "child %d", i)
		}
		out = append(out, c)
	}
	return out, nil
}

// EncodeTo writes the 32-byte seed hash followed by the path.
func (w WalletDerivationPath) EncodeTo(cw *codec.Writer) {
	cw.PutFixed(w.SeedHash[:])
	w.Path.EncodeTo(cw)
}

// DecodeFrom reads a wallet path from a shared reader, leaving any following
// bytes unread.
func (w *WalletDerivationPath) DecodeFrom(r *codec.Reader) error {
	var hash SeedHash
	if err := r.Fixed(hash[:]); err != nil {
		return err
	}
	path, err := DecodePath(r)
	if err != nil {
		return err
	}
	w.SeedHash = hash
	w.Path = path
	return nil
}

func (w WalletDerivationPath) MarshalBinary() ([]byte, error) {
	if err := w.Path.Validate(); err != nil {
		return nil, err
	}
	cw := codec.NewWriter()
	w.EncodeTo(cw)
	return cw.Bytes(), nil
}

// UnmarshalBinary decodes a standalone buffer. Trailing bytes are an error.
func (w *WalletDerivationPath) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data)
	var out WalletDerivationPath
	if err := out.DecodeFrom(r); err != nil {
		return err
	}
	if err := r.Finish(); err != nil {
		return err
	}
	*w = out
	return nil
}
