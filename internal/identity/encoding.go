package identity

import (
	"bytes"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/dashpay/dash-evo-tool-sub003/internal/codec"
	"github.com/dashpay/dash-evo-tool-sub003/internal/keystore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

const formatVersion = 1

var ErrUnsupportedFormat = errors.New("unsupported qualified identity format")

// MarshalBinary writes:
//
//	version · identity · voter? · operator? · owner key id? · type · alias? · keys · names
//
// Wallet bindings, the wallet index and top-ups are not written. The output
// carries clear key bytes.
func (q *QualifiedIdentity) MarshalBinary() ([]byte, error) {
	if err := q.keys().Validate(); err != nil {
		return nil, err
	}
	w := codec.NewWriter()
	w.PutByte(formatVersion)
	w.PutIdentity(q.Identity)
	putAssociated(w, q.AssociatedVoterIdentity)
	putAssociated(w, q.AssociatedOperatorIdentity)
	if q.AssociatedOwnerKeyID == nil {
		w.PutByte(0)
	} else {
		w.PutByte(1)
		w.PutUint32(uint32(*q.AssociatedOwnerKeyID))
	}
	w.PutByte(byte(q.IdentityType))
	if q.Alias == "" {
		w.PutByte(0)
	} else {
		w.PutByte(1)
		w.PutText(q.Alias)
	}
	q.keys().EncodeTo(w)
	w.PutUvarint(uint64(len(q.DPNSNames)))
	for _, n := range q.DPNSNames {
		w.PutText(n.Name)
		w.PutUint64(n.AcquiredAt)
	}
	return w.Bytes(), nil
}

// UnmarshalBinary replaces q with the decoded identity. The network and
// wallets bound to the current key storage carry over.
func (q *QualifiedIdentity) UnmarshalBinary(data []byte) error {
	network := models.NetworkMainnet
	var seeds keystore.SeedSource
	if q.PrivateKeys != nil {
		network = q.PrivateKeys.Network()
		seeds = q.PrivateKeys.Seeds()
	}
	decoded, err := decode(data, network, seeds)
	if err != nil {
		return err
	}
	q.Destroy()
	decoded.logger = q.logger
	*q = *decoded
	return nil
}

// Decode reads a persisted identity and binds its key storage to network and
// seeds.
func Decode(data []byte, network models.Network, seeds keystore.SeedSource) (*QualifiedIdentity, error) {
	return decode(data, network, seeds)
}

func decode(data []byte, network models.Network, seeds keystore.SeedSource) (*QualifiedIdentity, error) {
	r := codec.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, pkgerrors.Wrapf(ErrUnsupportedFormat, "version %d", version)
	}
	q := New(models.Identity{}, network)
	if q.Identity, err = r.Identity(); err != nil {
		return nil, pkgerrors.Wrap(err, "identity")
	}
	if q.AssociatedVoterIdentity, err = readAssociated(r); err != nil {
		return nil, pkgerrors.Wrap(err, "voter identity")
	}
	if q.AssociatedOperatorIdentity, err = readAssociated(r); err != nil {
		return nil, pkgerrors.Wrap(err, "operator identity")
	}
	present, err := readMarker(r)
	if err != nil {
		return nil, err
	}
	if present {
		id, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		owner := models.KeyID(id)
		q.AssociatedOwnerKeyID = &owner
	}
	typ, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	q.IdentityType = models.IdentityType(typ)
	if !q.IdentityType.Valid() {
		return nil, pkgerrors.Wrapf(codec.ErrInvalidEnum, "identity type %d", typ)
	}
	if present, err = readMarker(r); err != nil {
		return nil, err
	}
	if present {
		if q.Alias, err = r.Text(); err != nil {
			return nil, err
		}
	}

	storage := keystore.New(network, seeds)
	if err := storage.DecodeFrom(r); err != nil {
		return nil, pkgerrors.Wrap(err, "private keys")
	}
	q.PrivateKeys = storage
	fail := func(err error) (*QualifiedIdentity, error) {
		storage.Destroy()
		return nil, err
	}

	n, err := r.Uvarint()
	if err != nil {
		return fail(err)
	}
	if n > uint64(r.Remaining()) {
		return fail(codec.ErrTruncated)
	}
	for i := uint64(0); i < n; i++ {
		name, err := r.Text()
		if err != nil {
			return fail(err)
		}
		at, err := r.Uint64()
		if err != nil {
			return fail(err)
		}
		q.DPNSNames = append(q.DPNSNames, DPNSName{Name: name, AcquiredAt: at})
	}
	if err := r.Finish(); err != nil {
		return fail(err)
	}
	return q, nil
}

func putAssociated(w *codec.Writer, a *AssociatedIdentity) {
	if a == nil {
		w.PutByte(0)
		return
	}
	w.PutByte(1)
	w.PutIdentity(a.Identity)
	w.PutIdentityPublicKey(a.Key)
}

func readAssociated(r *codec.Reader) (*AssociatedIdentity, error) {
	present, err := readMarker(r)
	if err != nil || !present {
		return nil, err
	}
	var a AssociatedIdentity
	if a.Identity, err = r.Identity(); err != nil {
		return nil, err
	}
	if a.Key, err = r.IdentityPublicKey(); err != nil {
		return nil, err
	}
	return &a, nil
}

func readMarker(r *codec.Reader) (bool, error) {
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
		return false, codec.ErrInvalidOptional
	}
}

// Equal compares persisted state. Wallet bindings, the wallet index and
// top-ups are ignored.
func (q *QualifiedIdentity) Equal(other *QualifiedIdentity) bool {
	a, _ := q.MarshalBinary()
	b, _ := other.MarshalBinary()
	defer secret.Wipe(a)
	defer secret.Wipe(b)
	return bytes.Equal(a, b)
}
