package identity

import (
	"github.com/dashpay/dash-evo-tool-sub003/internal/address"
	"github.com/dashpay/dash-evo-tool-sub003/internal/keystore"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

// Selection helpers work on stored public descriptors only.

func (q *QualifiedIdentity) selectKeys(keep func(target keystore.PrivateKeyTarget, k models.IdentityPublicKey) bool) []keystore.QualifiedPublicKey {
	var out []keystore.QualifiedPublicKey
	for _, tk := range q.keys().IdentityPublicKeys() {
		if keep(tk.Target, tk.Public.Key) {
			out = append(out, tk.Public)
		}
	}
	return out
}

// AvailableTransferKeys returns transfer keys, plus owner keys for masternode
// and evonode identities.
func (q *QualifiedIdentity) AvailableTransferKeys() []keystore.QualifiedPublicKey {
	user := q.IdentityType == models.IdentityTypeUser
	return q.selectKeys(func(_ keystore.PrivateKeyTarget, k models.IdentityPublicKey) bool {
		return k.Purpose == models.PurposeTransfer || (!user && k.Purpose == models.PurposeOwner)
	})
}

// AvailableWithdrawalKeys returns main-identity keys allowed to withdraw:
// transfer keys for users, owner or transfer keys for masternodes.
func (q *QualifiedIdentity) AvailableWithdrawalKeys() []keystore.QualifiedPublicKey {
	user := q.IdentityType == models.IdentityTypeUser
	return q.selectKeys(func(target keystore.PrivateKeyTarget, k models.IdentityPublicKey) bool {
		if target != keystore.TargetMainIdentity {
			return false
		}
		if user {
			return k.Purpose == models.PurposeTransfer
		}
		return k.Purpose == models.PurposeTransfer || k.Purpose == models.PurposeOwner
	})
}

func (q *QualifiedIdentity) AvailableAuthenticationKeys() []keystore.QualifiedPublicKey {
	return q.selectKeys(func(_ keystore.PrivateKeyTarget, k models.IdentityPublicKey) bool {
		return k.Purpose == models.PurposeAuthentication
	})
}

func (q *QualifiedIdentity) AvailableAuthenticationKeysNonMaster() []keystore.QualifiedPublicKey {
	return q.selectKeys(func(_ keystore.PrivateKeyTarget, k models.IdentityPublicKey) bool {
		return k.Purpose == models.PurposeAuthentication && k.SecurityLevel != models.SecurityLevelMaster
	})
}

func (q *QualifiedIdentity) KeysWithCriticalOrHighSecurity() []keystore.QualifiedPublicKey {
	return q.selectKeys(func(_ keystore.PrivateKeyTarget, k models.IdentityPublicKey) bool {
		return k.SecurityLevel == models.SecurityLevelCritical || k.SecurityLevel == models.SecurityLevelHigh
	})
}

// CanSignWithMasterKey returns the master authentication key held for a user
// identity's main target, if any.
func (q *QualifiedIdentity) CanSignWithMasterKey() (keystore.QualifiedPublicKey, bool) {
	if q.IdentityType != models.IdentityTypeUser {
		return keystore.QualifiedPublicKey{}, false
	}
	keys := q.selectKeys(func(target keystore.PrivateKeyTarget, k models.IdentityPublicKey) bool {
		return target == keystore.TargetMainIdentity &&
			k.Purpose == models.PurposeAuthentication &&
			k.SecurityLevel == models.SecurityLevelMaster
	})
	if len(keys) == 0 {
		return keystore.QualifiedPublicKey{}, false
	}
	return keys[0], true
}

// DocumentSigningKey returns the first enabled authentication key of the
// identity at the given security level.
func (q *QualifiedIdentity) DocumentSigningKey(level models.SecurityLevel) (models.IdentityPublicKey, bool) {
	for _, k := range q.Identity.SortedPublicKeys() {
		if k.Purpose == models.PurposeAuthentication && k.SecurityLevel == level && !k.IsDisabled() {
			return k, true
		}
	}
	return models.IdentityPublicKey{}, false
}

// MasternodePayoutAddress derives the payout address from the first enabled
// critical transfer key holding a valid pubkey or script hash. Keys whose data
// is not a 20-byte hash are skipped.
func (q *QualifiedIdentity) MasternodePayoutAddress(network models.Network) (address.Address, bool) {
	for _, k := range q.Identity.SortedPublicKeys() {
		if k.Purpose != models.PurposeTransfer || k.SecurityLevel != models.SecurityLevelCritical || k.IsDisabled() {
			continue
		}
		var kind address.Kind
		switch k.KeyType {
		case models.KeyTypeECDSAHash160:
			kind = address.PubKeyHash
		case models.KeyTypeBIP13ScriptHash:
			kind = address.ScriptHash
		default:
			continue
		}
		a, err := address.New(network, kind, k.Data)
		if err != nil {
			continue
		}
		return a, true
	}
	return address.Address{}, false
}
