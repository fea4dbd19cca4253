// Package codec implements the ordered, non-self-describing binary layout
// used for persisted key storage and identities. Fixed-width integers are
// big-endian; lengths and counts are unsigned varints.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/multiformats/go-varint"
	pkgerrors "github.com/pkg/errors"
)

// MaxLength bounds any single length prefix read from untrusted input.
const MaxLength = 1 << 20

var (
	ErrTruncated       = errors.New("codec: unexpected end of input")
	ErrTrailingBytes   = errors.New("codec: trailing bytes after value")
	ErrLengthTooLarge  = errors.New("codec: length prefix too large")
	ErrInvalidBool     = errors.New("codec: invalid bool byte")
	ErrInvalidOptional = errors.New("codec: invalid optional marker")
)

type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) WriteByte(b byte) error {
	return w.buf.WriteByte(b)
}

func (w *Writer) PutByte(b byte) {
	w.buf.WriteByte(b)
}

func (w *Writer) PutBool(v bool) {
	if v {
		w.buf.WriteByte(1)
		return
	}
	w.buf.WriteByte(0)
}

func (w *Writer) PutUvarint(v uint64) {
	w.buf.Write(varint.ToUvarint(v))
}

func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// PutFixed writes b without a length prefix.
func (w *Writer) PutFixed(b []byte) {
	w.buf.Write(b)
}

// PutBytes writes a varint length followed by b.
func (w *Writer) PutBytes(b []byte) {
	w.PutUvarint(uint64(len(b)))
	w.buf.Write(b)
}

func (w *Writer) PutText(s string) {
	w.PutUvarint(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *Writer) Len() int {
	return w.buf.Len()
}

// Bytes returns the encoded buffer. The writer must not be reused after.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Reader decodes in place. Slices it returns alias the input buffer.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Finish reports an error if unread bytes remain.
func (r *Reader) Finish() error {
	if r.Remaining() != 0 {
		return pkgerrors.Wrapf(ErrTrailingBytes, "%d bytes", r.Remaining())
	}
	return nil
}

// ReadByte implements io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *Reader) Bool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

func (r *Reader) Uvarint() (uint64, error) {
	v, n, err := varint.FromUvarint(r.data[r.off:])
	if err != nil {
		if errors.Is(err, varint.ErrUnderflow) {
			return 0, ErrTruncated
		}
		return 0, pkgerrors.Wrap(err, "codec: read varint")
	}
	r.off += n
	return v, nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Next returns the next n bytes without copying.
func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrTruncated
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

// Fixed copies len(dst) bytes into dst.
func (r *Reader) Fixed(dst []byte) error {
	b, err := r.Next(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// Len reads a varint length prefix and checks it against the remaining input.
func (r *Reader) Len() (int, error) {
	n, err := r.Uvarint()
	if err != nil {
		return 0, err
	}
	if n > MaxLength {
		return 0, ErrLengthTooLarge
	}
	if int(n) > r.Remaining() {
		return 0, ErrTruncated
	}
	return int(n), nil
}

// BytesRef reads a length-prefixed byte string without copying.
func (r *Reader) BytesRef() ([]byte, error) {
	n, err := r.Len()
	if err != nil {
		return nil, err
	}
	return r.Next(n)
}

// Bytes reads a length-prefixed byte string into a fresh slice.
func (r *Reader) Bytes() ([]byte, error) {
	b, err := r.BytesRef()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (r *Reader) Text() (string, error) {
	b, err := r.BytesRef()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
