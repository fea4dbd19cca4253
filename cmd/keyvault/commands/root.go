package commands

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dashpay/dash-evo-tool-sub003/internal/composition/vault"
	"github.com/dashpay/dash-evo-tool-sub003/internal/config"
	"github.com/dashpay/dash-evo-tool-sub003/internal/platform/privacylog"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	network    string
	dataDir    string
	logLevel   string

	logger *zap.Logger
	vlt    *vault.Vault
)

const skipVault = "skip-vault"

func Execute() error {
	return execute(newRootCmd())
}

// execute runs root and closes the vault even when the command failed.
func execute(root *cobra.Command) error {
	defer closeVault()
	return root.Execute()
}

func closeVault() {
	if vlt != nil {
		if err := vlt.Close(); err != nil {
			logger.Warn("vault close failed", zap.Error(err))
		}
		vlt = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "keyvault",
		Short:         "Dash Platform identity key vault",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipVault] != "" {
				return nil
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err = privacylog.NewLogger(cfg.LogLevel, cfg.LogFormat, zapcore.Lock(os.Stderr))
			if err != nil {
				return err
			}
			vlt, err = vault.Open(cfg, logger)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if vlt == nil {
				return nil
			}
			if err := vlt.WriteMetrics(); err != nil && !errors.Is(err, vault.ErrMetricsFileNotSet) {
				logger.Warn("metrics export failed", zap.Error(err))
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to keyvault.yaml (optional)")
	root.PersistentFlags().StringVar(&network, "network", "", "mainnet | testnet | devnet | regtest")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for vault data")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug | info | warn | error")

	root.AddCommand(
		walletCmd(),
		identityCmd(),
		keyCmd(),
		signCmd(),
		verifyCmd(),
		backupCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig applies command-line flags over file and environment settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if network != "" {
		n, err := models.ParseNetwork(network)
		if err != nil {
			return cfg, err
		}
		cfg.Network = n
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version and exit",
		Annotations: map[string]string{skipVault: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "keyvault version=%s commit=%s build_date=%s\n", version, commit, buildDate)
			return nil
		},
	}
}
