package codec

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

var ErrInvalidEnum = pkgerrors.New("codec: enum value out of range")

func (w *Writer) PutIdentityPublicKey(k models.IdentityPublicKey) {
	w.PutUint32(uint32(k.ID))
	w.PutByte(byte(k.Purpose))
	w.PutByte(byte(k.SecurityLevel))
	w.PutByte(byte(k.KeyType))
	w.PutBool(k.ReadOnly)
	w.PutBytes(k.Data)
	if k.DisabledAt == nil {
		w.PutByte(0)
		return
	}
	w.PutByte(1)
	w.PutUint64(*k.DisabledAt)
}

func (r *Reader) IdentityPublicKey() (models.IdentityPublicKey, error) {
	var k models.IdentityPublicKey
	id, err := r.Uint32()
	if err != nil {
		return k, err
	}
	k.ID = models.KeyID(id)

	var raw [3]byte
	if err := r.Fixed(raw[:]); err != nil {
		return k, err
	}
	k.Purpose = models.Purpose(raw[0])
	k.SecurityLevel = models.SecurityLevel(raw[1])
	k.KeyType = models.KeyType(raw[2])
	if !k.Purpose.Valid() || !k.SecurityLevel.Valid() || !k.KeyType.Valid() {
		return k, pkgerrors.Wrapf(ErrInvalidEnum, "key %d", k.ID)
	}
	if k.ReadOnly, err = r.Bool(); err != nil {
		return k, err
	}
	if k.Data, err = r.Bytes(); err != nil {
		return k, err
	}
	marker, err := r.ReadByte()
	if err != nil {
		return k, err
	}
	switch marker {
	case 0:
	case 1:
		at, err := r.Uint64()
		if err != nil {
			return k, err
		}
		k.DisabledAt = &at
	default:
		return k, ErrInvalidOptional
	}
	return k, nil
}

var ErrDuplicateKeyID = pkgerrors.New("codec: duplicate identity key id")

// PutIdentity writes id · balance · revision · count · keys, keys in id order.
func (w *Writer) PutIdentity(i models.Identity) {
	w.PutFixed(i.ID[:])
	w.PutUint64(i.Balance)
	w.PutUint64(i.Revision)
	keys := i.SortedPublicKeys()
	w.PutUvarint(uint64(len(keys)))
	for _, k := range keys {
		w.PutIdentityPublicKey(k)
	}
}

func (r *Reader) Identity() (models.Identity, error) {
	var i models.Identity
	if err := r.Fixed(i.ID[:]); err != nil {
		return i, err
	}
	var err error
	if i.Balance, err = r.Uint64(); err != nil {
		return i, err
	}
	if i.Revision, err = r.Uint64(); err != nil {
		return i, err
	}
	n, err := r.Uvarint()
	if err != nil {
		return i, err
	}
	if n > uint64(r.Remaining()) {
		return i, ErrTruncated
	}
	i.PublicKeys = make(map[models.KeyID]models.IdentityPublicKey, n)
	for j := uint64(0); j < n; j++ {
		k, err := r.IdentityPublicKey()
		if err != nil {
			return i, err
		}
		if _, dup := i.PublicKeys[k.ID]; dup {
			return i, pkgerrors.Wrapf(ErrDuplicateKeyID, "key %d", k.ID)
		}
		i.PublicKeys[k.ID] = k
	}
	return i, nil
}
