package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dashpay/dash-evo-tool-sub003/internal/identity"
	"github.com/dashpay/dash-evo-tool-sub003/internal/signer"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

func signCmd() *cobra.Command {
	var (
		target     string
		walletHash string
		password   string
	)
	cmd := &cobra.Command{
		Use:   "sign <identity-id> <key-id> <hex-message>",
		Short: "Sign a message with an identity key",
		Long:  "Sign a message with an identity key. ECDSA keys sign a 32-byte digest as given.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.ParseID(args[0])
			if err != nil {
				return err
			}
			var keyID uint32
			if _, err := fmt.Sscan(args[1], &keyID); err != nil {
				return errors.Wrap(err, "key id")
			}
			msg, err := hex.DecodeString(args[2])
			if err != nil {
				return errors.Wrap(err, "message")
			}
			t, err := parseTarget(target)
			if err != nil {
				return err
			}
			if err := unlockIfRequested(walletHash, password); err != nil {
				return err
			}
			sig, _, err := vlt.Sign(id, t, models.KeyID(keyID), msg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(sig))
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "main", "main | voter | operator")
	cmd.Flags().StringVar(&walletHash, "wallet", "", "unlock this wallet first")
	cmd.Flags().StringVar(&password, "password", "", secretUsage("wallet password", walletPasswordEnv))
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "verify <key-type> <hex-public-data> <hex-message> <hex-signature>",
		Short:       "Verify a signature against identity public key data",
		Args:        cobra.ExactArgs(4),
		Annotations: map[string]string{skipVault: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kt, err := models.ParseKeyType(args[0])
			if err != nil {
				return err
			}
			decoded := make([][]byte, 3)
			for i, name := range []string{"public data", "message", "signature"} {
				if decoded[i], err = hex.DecodeString(args[i+1]); err != nil {
					return errors.Wrap(err, name)
				}
			}
			if err := signer.Verify(kt, decoded[0], decoded[1], decoded[2]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}
