// Package identity binds a Platform identity to the private keys held for it
// and exposes the signing and key-selection surface used by task code.
package identity

import (
	"errors"
	"sort"

	"github.com/mr-tron/base58"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dashpay/dash-evo-tool-sub003/internal/keystore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/signer"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

var ErrInvalidIdentityID = errors.New("invalid identity id")

// EncodeID renders an identity id in base58, the form shown to users.
func EncodeID(id models.IdentityID) string {
	return base58.Encode(id[:])
}

func ParseID(raw string) (models.IdentityID, error) {
	var id models.IdentityID
	decoded, err := base58.Decode(raw)
	if err != nil {
		return id, pkgerrors.Wrap(ErrInvalidIdentityID, err.Error())
	}
	if len(decoded) != models.IdentityIDSize {
		return id, pkgerrors.Wrapf(ErrInvalidIdentityID, "decoded %d bytes", len(decoded))
	}
	copy(id[:], decoded)
	return id, nil
}

// AssociatedIdentity is a voter or operator identity linked to a masternode,
// with the key of that identity the masternode controls.
type AssociatedIdentity struct {
	Identity models.Identity
	Key      models.IdentityPublicKey
}

type DPNSName struct {
	Name       string
	AcquiredAt uint64
}

// QualifiedIdentity is an identity together with the private keys this
// process holds for it. WalletIndex and TopUps are runtime state and are not
// persisted.
type QualifiedIdentity struct {
	Identity                   models.Identity
	AssociatedVoterIdentity    *AssociatedIdentity
	AssociatedOperatorIdentity *AssociatedIdentity
	AssociatedOwnerKeyID       *models.KeyID
	IdentityType               models.IdentityType
	Alias                      string
	PrivateKeys                *keystore.KeyStorage
	DPNSNames                  []DPNSName

	// WalletIndex is the identity index used to register the identity.
	WalletIndex *uint32
	// TopUps maps top-up index to the funded amount.
	TopUps map[uint32]uint32

	logger *zap.Logger
}

// New wraps a bare identity as a user identity with no private keys.
func New(id models.Identity, network models.Network) *QualifiedIdentity {
	return &QualifiedIdentity{
		Identity:     id,
		IdentityType: models.IdentityTypeUser,
		PrivateKeys:  keystore.New(network, nil),
		TopUps:       make(map[uint32]uint32),
		logger:       zap.NewNop(),
	}
}

// Bind attaches the wallets and network used to resolve wallet-backed keys.
func (q *QualifiedIdentity) Bind(network models.Network, seeds keystore.SeedSource) {
	q.keys().Bind(network, seeds)
}

func (q *QualifiedIdentity) SetLogger(l *zap.Logger) {
	if l != nil {
		q.logger = l
	}
}

func (q *QualifiedIdentity) keys() *keystore.KeyStorage {
	if q.PrivateKeys == nil {
		q.PrivateKeys = keystore.New(models.NetworkMainnet, nil)
	}
	return q.PrivateKeys
}

func (q *QualifiedIdentity) newSigner() *signer.Signer {
	l := q.logger
	if l == nil {
		l = zap.NewNop()
	}
	return signer.New(q.keys(), signer.WithLogger(l.With(zap.String("identity", EncodeID(q.Identity.ID)))))
}

// Sign signs message with the stored private key for pk. ECDSA keys require a
// 32-byte digest; see signer.Signer.Sign.
func (q *QualifiedIdentity) Sign(pk models.IdentityPublicKey, message []byte) ([]byte, error) {
	return q.newSigner().Sign(pk, message)
}

func (q *QualifiedIdentity) CanSignWith(pk models.IdentityPublicKey) bool {
	return q.newSigner().CanSignWith(pk)
}

func (q *QualifiedIdentity) DisplayString() string {
	if q.Alias != "" {
		return q.Alias
	}
	return EncodeID(q.Identity.ID)
}

// DisplayShortString is the alias, or the first five base58 characters of the id.
func (q *QualifiedIdentity) DisplayShortString() string {
	if q.Alias != "" {
		return q.Alias
	}
	id := EncodeID(q.Identity.ID)
	if len(id) > 5 {
		return id[:5]
	}
	return id
}

func (q *QualifiedIdentity) VoteStrength() uint64 {
	return q.IdentityType.VoteStrength()
}

// AddDPNSName records a name, keeping names ordered by acquisition time.
func (q *QualifiedIdentity) AddDPNSName(name string, acquiredAt uint64) {
	for i := range q.DPNSNames {
		if q.DPNSNames[i].Name == name {
			q.DPNSNames[i].AcquiredAt = acquiredAt
			q.sortNames()
			return
		}
	}
	q.DPNSNames = append(q.DPNSNames, DPNSName{Name: name, AcquiredAt: acquiredAt})
	q.sortNames()
}

func (q *QualifiedIdentity) sortNames() {
	sort.SliceStable(q.DPNSNames, func(i, j int) bool {
		return q.DPNSNames[i].AcquiredAt < q.DPNSNames[j].AcquiredAt
	})
}

// RecordTopUp stores a top-up amount under its funding index.
func (q *QualifiedIdentity) RecordTopUp(index, amount uint32) {
	if q.TopUps == nil {
		q.TopUps = make(map[uint32]uint32)
	}
	q.TopUps[index] = amount
}

// NextTopUpIndex is one past the highest recorded top-up index.
func (q *QualifiedIdentity) NextTopUpIndex() uint32 {
	var next uint32
	for index := range q.TopUps {
		if index+1 > next {
			next = index + 1
		}
	}
	return next
}

// Destroy wipes every private key held for the identity.
func (q *QualifiedIdentity) Destroy() {
	if q.PrivateKeys != nil {
		q.PrivateKeys.Destroy()
	}
}
