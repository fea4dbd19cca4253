package keystore

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/dashpay/dash-evo-tool-sub003/internal/codec"
	"github.com/dashpay/dash-evo-tool-sub003/internal/hdpath"
	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

var (
	ErrInvalidVariantTag = errors.New("invalid private key variant tag")
	ErrInvalidTarget     = errors.New("invalid private key target")
	ErrDuplicateKey      = errors.New("duplicate key identifier")
)

// EncodeTo writes entries in identifier order:
//
//	count · { target u8 · key id u32 · descriptor · wallet path? · variant u8 · payload }*
//
// The output carries clear key bytes; callers should wipe it once persisted.
func (s *KeyStorage) EncodeTo(w *codec.Writer) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.sortedIDsLocked()
	w.PutUvarint(uint64(len(ids)))
	for _, id := range ids {
		e := s.keys[id]
		w.PutByte(byte(id.Target))
		w.PutUint32(uint32(id.ID))
		encodeQualified(w, e.public)
		encodeData(w, e.data)
	}
}

// Validate checks that every entry can be encoded and decoded again.
func (s *KeyStorage) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.sortedIDsLocked() {
		e := s.keys[id]
		if e.public.InWallet != nil {
			if err := e.public.InWallet.Path.Validate(); err != nil {
				return pkgerrors.Wrapf(err, "key %s", id)
			}
		}
		if wp, ok := WalletPath(e.data); ok {
			if err := wp.Path.Validate(); err != nil {
				return pkgerrors.Wrapf(err, "key %s", id)
			}
		}
	}
	return nil
}

func (s *KeyStorage) MarshalBinary() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	w := codec.NewWriter()
	s.EncodeTo(w)
	return w.Bytes(), nil
}

// DecodeFrom replaces the contents of s with entries read from r. On error s
// is left unchanged and any partially decoded secrets are wiped.
func (s *KeyStorage) DecodeFrom(r *codec.Reader) error {
	n, err := r.Uvarint()
	if err != nil {
		return err
	}
	if n > uint64(r.Remaining()) {
		return codec.ErrTruncated
	}
	keys := make(map[KeyIdentifier]entry, n)
	fail := func(err error) error {
		for _, e := range keys {
			destroyData(e.data)
		}
		return err
	}
	for i := uint64(0); i < n; i++ {
		id, e, err := decodeEntry(r)
		if err != nil {
			return fail(pkgerrors.Wrapf(err, "key entry %d", i))
		}
		if _, dup := keys[id]; dup {
			destroyData(e.data)
			return fail(pkgerrors.Wrap(ErrDuplicateKey, id.String()))
		}
		keys[id] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.keys {
		destroyData(e.data)
	}
	s.keys = keys
	return nil
}

func (s *KeyStorage) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data)
	tmp := &KeyStorage{}
	if err := tmp.DecodeFrom(r); err != nil {
		return err
	}
	if err := r.Finish(); err != nil {
		tmp.Destroy()
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.keys {
		destroyData(e.data)
	}
	s.keys = tmp.keys
	return nil
}

// Decode builds a storage bound to network and seeds from its binary form.
func Decode(data []byte, network models.Network, seeds SeedSource) (*KeyStorage, error) {
	s := New(network, seeds)
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeQualified(w *codec.Writer, q QualifiedPublicKey) {
	w.PutIdentityPublicKey(q.Key)
	if q.InWallet == nil {
		w.PutByte(0)
		return
	}
	w.PutByte(1)
	q.InWallet.EncodeTo(w)
}

func decodeQualified(r *codec.Reader) (QualifiedPublicKey, error) {
	var q QualifiedPublicKey
	k, err := r.IdentityPublicKey()
	if err != nil {
		return q, err
	}
	q.Key = k
	marker, err := r.ReadByte()
	if err != nil {
		return q, err
	}
	switch marker {
	case 0:
	case 1:
		var wp hdpath.WalletDerivationPath
		if err := wp.DecodeFrom(r); err != nil {
			return q, err
		}
		q.InWallet = &wp
	default:
		return q, codec.ErrInvalidOptional
	}
	return q, nil
}

func encodeData(w *codec.Writer, d PrivateKeyData) {
	w.PutByte(byte(d.variant()))
	switch v := d.(type) {
	case AlwaysClear:
		w.PutFixed(v.Key.Bytes())
	case Clear:
		w.PutFixed(v.Key.Bytes())
	case Encrypted:
		w.PutBytes(v.Ciphertext)
	case AtWalletDerivationPath:
		v.Path.EncodeTo(w)
	}
}

func decodeData(r *codec.Reader) (PrivateKeyData, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch variantTag(tag) {
	case tagAlwaysClear, tagClear:
		var raw [secret.KeySize]byte
		if err := r.Fixed(raw[:]); err != nil {
			return nil, err
		}
		k := secret.FromArray(&raw)
		if variantTag(tag) == tagAlwaysClear {
			return AlwaysClear{Key: k}, nil
		}
		return Clear{Key: k}, nil
	case tagEncrypted:
		ct, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		return Encrypted{Ciphertext: ct}, nil
	case tagAtWalletDerivationPath:
		var wp hdpath.WalletDerivationPath
		if err := wp.DecodeFrom(r); err != nil {
			return nil, err
		}
		return AtWalletDerivationPath{Path: wp}, nil
	default:
		return nil, pkgerrors.Wrapf(ErrInvalidVariantTag, "tag %d", tag)
	}
}

func decodeEntry(r *codec.Reader) (KeyIdentifier, entry, error) {
	var id KeyIdentifier
	target, err := r.ReadByte()
	if err != nil {
		return id, entry{}, err
	}
	id.Target = PrivateKeyTarget(target)
	if !id.Target.Valid() {
		return id, entry{}, pkgerrors.Wrapf(ErrInvalidTarget, "target %d", target)
	}
	keyID, err := r.Uint32()
	if err != nil {
		return id, entry{}, err
	}
	id.ID = models.KeyID(keyID)

	public, err := decodeQualified(r)
	if err != nil {
		return id, entry{}, err
	}
	data, err := decodeData(r)
	if err != nil {
		return id, entry{}, err
	}
	return id, entry{public: public, data: data}, nil
}
