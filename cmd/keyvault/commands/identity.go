package commands

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dashpay/dash-evo-tool-sub003/internal/identity"
	"github.com/dashpay/dash-evo-tool-sub003/internal/keystore"
	"github.com/dashpay/dash-evo-tool-sub003/internal/wallet"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage stored identities",
	}
	cmd.AddCommand(identityAddCmd(), identityListCmd(), identityShowCmd(), identityRemoveCmd())
	return cmd
}

func identityAddCmd() *cobra.Command {
	var (
		alias        string
		identityType string
		balance      uint64
		revision     uint64
		replace      bool
	)
	cmd := &cobra.Command{
		Use:   "add <identity-id>",
		Short: "Store an identity with no private keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.ParseID(args[0])
			if err != nil {
				return err
			}
			kind, err := models.ParseIdentityType(identityType)
			if err != nil {
				return err
			}
			q := identity.New(models.Identity{
				ID:         id,
				Balance:    balance,
				Revision:   revision,
				PublicKeys: map[models.KeyID]models.IdentityPublicKey{},
			}, vlt.Network())
			defer q.Destroy()
			q.IdentityType = kind
			q.Alias = alias
			if err := vlt.AddIdentity(q, replace); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", q.DisplayString())
			return nil
		},
	}
	cmd.Flags().StringVar(&alias, "alias", "", "local display name")
	cmd.Flags().StringVar(&identityType, "type", "user", "user | masternode | evonode")
	cmd.Flags().Uint64Var(&balance, "balance", 0, "known credit balance")
	cmd.Flags().Uint64Var(&revision, "revision", 0, "identity revision")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an identity already stored")
	return cmd
}

func identityListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List identities for the selected network",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := vlt.Identities()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, q := range all {
				fmt.Fprintf(out, "%s\t%s\t%s\tkeys=%d\n",
					identity.EncodeID(q.Identity.ID), q.DisplayShortString(), q.IdentityType, q.PrivateKeys.Len())
				q.Destroy()
			}
			return nil
		},
	}
}

func identityShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <identity-id>",
		Short: "Show an identity and the keys held for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.ParseID(args[0])
			if err != nil {
				return err
			}
			q, err := vlt.Identity(id)
			if err != nil {
				return err
			}
			defer q.Destroy()
			printIdentity(cmd.OutOrStdout(), q, vlt.Network())
			return nil
		},
	}
}

func printIdentity(out io.Writer, q *identity.QualifiedIdentity, network models.Network) {
	fmt.Fprintf(out, "Identity:      %s\n", identity.EncodeID(q.Identity.ID))
	fmt.Fprintf(out, "Name:          %s\n", q.DisplayString())
	fmt.Fprintf(out, "Type:          %s (vote strength %d)\n", q.IdentityType, q.VoteStrength())
	fmt.Fprintf(out, "Balance:       %d\n", q.Identity.Balance)
	fmt.Fprintf(out, "Revision:      %d\n", q.Identity.Revision)
	if addr, ok := q.MasternodePayoutAddress(network); ok {
		fmt.Fprintf(out, "Payout:        %s\n", addr)
	}
	if _, ok := q.CanSignWithMasterKey(); ok {
		fmt.Fprintln(out, "Master key:    held")
	}
	for _, n := range q.DPNSNames {
		fmt.Fprintf(out, "DPNS:          %s\n", n.Name)
	}
	fmt.Fprintln(out, "Keys:")
	for _, tk := range q.PrivateKeys.IdentityPublicKeys() {
		k := tk.Public.Key
		source := "stored"
		data, _, _ := q.PrivateKeys.PrivateKeyData(keystore.KeyIdentifier{Target: tk.Target, ID: k.ID})
		if wp, ok := keystore.WalletPath(data); ok {
			source = "wallet " + wallet.ShortHash(wp.SeedHash) + " " + wp.Path.String()
		}
		fmt.Fprintf(out, "  %s/%d\t%s\t%s\t%s\t%s\t%s\n",
			tk.Target, k.ID, k.Purpose, k.SecurityLevel, k.KeyType, hex.EncodeToString(k.Data), source)
	}
	fmt.Fprintf(out, "Transfer keys: %d\n", len(q.AvailableTransferKeys()))
	fmt.Fprintf(out, "Withdrawal keys: %d\n", len(q.AvailableWithdrawalKeys()))
	fmt.Fprintf(out, "Authentication keys: %d\n", len(q.AvailableAuthenticationKeys()))
}

func identityRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <identity-id>",
		Short: "Delete an identity and its private keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.ParseID(args[0])
			if err != nil {
				return err
			}
			if err := vlt.RemoveIdentity(id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed")
			return nil
		},
	}
}

func parseTarget(raw string) (keystore.PrivateKeyTarget, error) {
	switch raw {
	case "", "main":
		return keystore.TargetMainIdentity, nil
	case "voter":
		return keystore.TargetVoterIdentity, nil
	case "operator":
		return keystore.TargetOperatorIdentity, nil
	default:
		return 0, fmt.Errorf("unknown key target %q", raw)
	}
}
