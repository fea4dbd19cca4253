package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dashpay/dash-evo-tool-sub003/internal/composition/vault"
	"github.com/dashpay/dash-evo-tool-sub003/internal/identity"
	"github.com/dashpay/dash-evo-tool-sub003/internal/secret"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Attach private keys to identities",
	}
	cmd.AddCommand(keyImportCmd(), keyDeriveCmd())
	return cmd
}

func keyImportCmd() *cobra.Command {
	var (
		keyID      uint32
		purpose    string
		security   string
		keyType    string
		privateKey string
		publicData string
		readOnly   bool
	)
	cmd := &cobra.Command{
		Use:   "import <identity-id>",
		Short: "Import a raw 32-byte private key for an identity key",
		Long: "Import a raw 32-byte private key for an identity key. The hex key is read\n" +
			"from " + privateKeyEnv + " unless --private-key is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.ParseID(args[0])
			if err != nil {
				return err
			}
			pk := models.IdentityPublicKey{ID: models.KeyID(keyID), ReadOnly: readOnly}
			if pk.Purpose, err = models.ParsePurpose(purpose); err != nil {
				return err
			}
			if pk.SecurityLevel, err = models.ParseSecurityLevel(security); err != nil {
				return err
			}
			if pk.KeyType, err = models.ParseKeyType(keyType); err != nil {
				return err
			}
			if publicData != "" {
				if pk.Data, err = hex.DecodeString(publicData); err != nil {
					return errors.Wrap(err, "public data")
				}
			}
			rawHex := flagOrEnv("private-key", privateKey, privateKeyEnv)
			defer secret.Wipe(rawHex)
			if len(rawHex) == 0 {
				return errors.New("private key required (--private-key or " + privateKeyEnv + ")")
			}
			raw := make([]byte, hex.DecodedLen(len(rawHex)))
			defer secret.Wipe(raw)
			if _, err := hex.Decode(raw, rawHex); err != nil {
				return errors.Wrap(err, "private key")
			}
			if err := vlt.ImportKey(id, pk, raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported key %d\n", keyID)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&keyID, "key-id", 0, "identity key id")
	cmd.Flags().StringVar(&purpose, "purpose", "authentication", "key purpose")
	cmd.Flags().StringVar(&security, "security", "high", "security level")
	cmd.Flags().StringVar(&keyType, "type", "ecdsa_secp256k1", "key type")
	cmd.Flags().StringVar(&privateKey, "private-key", "", secretUsage("hex private key", privateKeyEnv))
	cmd.Flags().StringVar(&publicData, "data", "", "hex public key data to check against (derived when empty)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "mark the key read-only")
	return cmd
}

func keyDeriveCmd() *cobra.Command {
	var (
		walletHash    string
		password      string
		keyType       string
		security      string
		identityIndex uint32
	)
	cmd := &cobra.Command{
		Use:   "derive <identity-id>",
		Short: "Derive the next authentication key from a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.ParseID(args[0])
			if err != nil {
				return err
			}
			kt, err := models.ParseKeyType(keyType)
			if err != nil {
				return err
			}
			level, err := models.ParseSecurityLevel(security)
			if err != nil {
				return err
			}
			hash, err := vault.ParseSeedHash(walletHash)
			if err != nil {
				return err
			}
			if err := vlt.UnlockWallet(hash, walletPassword(password)); err != nil {
				return err
			}
			pk, err := vlt.DeriveKey(id, hash, kt, level, identityIndex)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "derived key %d %s %s\n", pk.ID, pk.KeyType, hex.EncodeToString(pk.Data))
			return nil
		},
	}
	cmd.Flags().StringVar(&walletHash, "wallet", "", "seed hash of the wallet to derive from")
	cmd.Flags().StringVar(&password, "password", "", secretUsage("wallet password", walletPasswordEnv))
	cmd.Flags().StringVar(&keyType, "type", "ecdsa_secp256k1", "ecdsa_secp256k1 | ecdsa_hash160")
	cmd.Flags().StringVar(&security, "security", "high", "security level")
	cmd.Flags().Uint32Var(&identityIndex, "identity-index", 0, "wallet identity index")
	_ = cmd.MarkFlagRequired("wallet")
	return cmd
}
