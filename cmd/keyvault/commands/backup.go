package commands

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dashpay/dash-evo-tool-sub003/internal/identity"
)

func backupPassphrase(flag string) ([]byte, error) {
	pass := flagOrEnv("passphrase", flag, backupPassphraseEnv)
	if len(pass) == 0 {
		return nil, errors.New("backup passphrase required (--passphrase or " + backupPassphraseEnv + ")")
	}
	return pass, nil
}

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import sealed identity backups",
	}
	cmd.AddCommand(backupExportCmd(), backupImportCmd())
	return cmd
}

func backupExportCmd() *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "export <identity-id> <path>",
		Short: "Write an identity with its private keys to a sealed file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.ParseID(args[0])
			if err != nil {
				return err
			}
			pass, err := backupPassphrase(passphrase)
			if err != nil {
				return err
			}
			if err := vlt.ExportIdentity(id, args[1], pass); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", secretUsage("backup passphrase", backupPassphraseEnv))
	return cmd
}

func backupImportCmd() *cobra.Command {
	var (
		passphrase string
		replace    bool
	)
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Restore an identity from a sealed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := backupPassphrase(passphrase)
			if err != nil {
				return err
			}
			q, err := vlt.ImportIdentity(args[0], pass, replace)
			if err != nil {
				return err
			}
			defer q.Destroy()
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", identity.EncodeID(q.Identity.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", secretUsage("backup passphrase", backupPassphraseEnv))
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an identity already stored")
	return cmd
}
