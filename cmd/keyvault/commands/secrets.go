package commands

import (
	"os"

	"go.uber.org/zap"
)

const (
	walletPasswordEnv    = "KEYVAULT_WALLET_PASSWORD"
	newWalletPasswordEnv = "KEYVAULT_NEW_WALLET_PASSWORD"
	backupPassphraseEnv  = "KEYVAULT_BACKUP_PASSPHRASE"
	privateKeyEnv        = "KEYVAULT_PRIVATE_KEY"
)

// secretUsage is the help text of a flag that carries a secret. Flag values
// end up in the process list and shell history.
func secretUsage(what, env string) string {
	return what + " (insecure: visible to other local users; prefer " + env + ")"
}

// flagOrEnv returns the flag value when set, else the environment variable.
func flagOrEnv(flag, value, env string) []byte {
	if value != "" {
		if logger != nil {
			logger.Warn("secret passed as a command line flag",
				zap.String("flag", "--"+flag),
				zap.String("prefer_env", env))
		}
		return []byte(value)
	}
	return []byte(os.Getenv(env))
}

func walletPassword(flag string) []byte {
	return flagOrEnv("password", flag, walletPasswordEnv)
}
