// Package commands defines the keyvault CLI and wires the vault service for
// subcommands.
//
// Commands
//
//   - wallet     Create, list, re-password and remove HD wallets
//   - identity   Store, list, show and remove identities
//   - key        Import raw keys or derive wallet-backed identity keys
//   - sign       Sign a 32-byte digest with an identity key
//   - verify     Check a signature against public key data
//   - backup     Export or import a sealed identity backup
//   - version    Print build information
//
// # Implementation
//
// The root command loads configuration, builds the zap logger and opens the
// vault for the selected network before any subcommand runs. Wallets are
// loaded locked; commands that need an open seed take --wallet and read the
// password from KEYVAULT_WALLET_PASSWORD. The --password style flags still
// work but leak into the process list, so using one logs a warning.
package commands
