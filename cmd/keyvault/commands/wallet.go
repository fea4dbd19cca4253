package commands

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dashpay/dash-evo-tool-sub003/internal/composition/vault"
)

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage HD wallets",
	}
	cmd.AddCommand(walletCreateCmd(), walletListCmd(), walletChangePasswordCmd(), walletRemoveCmd())
	return cmd
}

func walletCreateCmd() *cobra.Command {
	var (
		mnemonic        string
		bip39Passphrase string
		password        string
		hint            string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a wallet from a mnemonic, or generate a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw := walletPassword(password)
			if len(pw) == 0 {
				return errors.New("wallet password required (--password or " + walletPasswordEnv + ")")
			}
			hash, used, err := vlt.CreateWallet(mnemonic, bip39Passphrase, pw, hint)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wallet: %s\n", vault.WalletInfo{Hash: hash}.HashHex())
			if mnemonic == "" {
				fmt.Fprintf(out, "Mnemonic (write it down, it is not shown again):\n%s\n", used)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "BIP39 mnemonic to restore (generated when empty)")
	cmd.Flags().StringVar(&bip39Passphrase, "bip39-passphrase", "", "optional BIP39 passphrase")
	cmd.Flags().StringVar(&password, "password", "", secretUsage("password that encrypts the seed", walletPasswordEnv))
	cmd.Flags().StringVar(&hint, "hint", "", "password hint stored in clear")
	return cmd
}

func walletListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored wallets",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, w := range vlt.ListWallets() {
				hint := w.PasswordHint
				if hint == "" {
					hint = "-"
				}
				fmt.Fprintf(out, "%s\thint=%s\n", w.HashHex(), hint)
			}
			return nil
		},
	}
}

func walletChangePasswordCmd() *cobra.Command {
	var password, newPassword string
	cmd := &cobra.Command{
		Use:   "change-password <seed-hash>",
		Short: "Re-encrypt a wallet seed under a new password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := vault.ParseSeedHash(args[0])
			if err != nil {
				return err
			}
			next := flagOrEnv("new-password", newPassword, newWalletPasswordEnv)
			if len(next) == 0 {
				return errors.New("new wallet password required (--new-password or " + newWalletPasswordEnv + ")")
			}
			if err := vlt.ChangeWalletPassword(hash, walletPassword(password), next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", secretUsage("current wallet password", walletPasswordEnv))
	cmd.Flags().StringVar(&newPassword, "new-password", "", secretUsage("new wallet password", newWalletPasswordEnv))
	return cmd
}

func walletRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <seed-hash>",
		Short: "Delete a stored wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := vault.ParseSeedHash(args[0])
			if err != nil {
				return err
			}
			if err := vlt.RemoveWallet(hash); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed")
			return nil
		},
	}
}

// unlockIfRequested opens the wallet named by --wallet before a command needs
// wallet-backed keys.
func unlockIfRequested(walletHash, password string) error {
	if walletHash == "" {
		return nil
	}
	hash, err := vault.ParseSeedHash(walletHash)
	if err != nil {
		return err
	}
	return vlt.UnlockWallet(hash, walletPassword(password))
}
