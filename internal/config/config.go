// Package config loads keyvault settings from YAML with KEYVAULT_* overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dashpay/dash-evo-tool-sub003/internal/securestore"
	"github.com/dashpay/dash-evo-tool-sub003/pkg/models"
)

type Config struct {
	Network     models.Network
	DataDir     string
	LogLevel    string
	LogFormat   string
	KDF         securestore.KDFParams
	UnlockRPS   float64
	UnlockBurst int
	// SealRecords encrypts identity records at rest with a store passphrase.
	SealRecords bool
	MetricsFile string
}

func Default() Config {
	return Config{
		Network:     models.NetworkTestnet,
		DataDir:     defaultDataDir(),
		LogLevel:    "info",
		LogFormat:   "console",
		KDF:         securestore.DefaultKDFParams(),
		UnlockRPS:   0.1,
		UnlockBurst: 5,
	}
}

// DBPath is the bbolt file for the configured network.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, c.Network.String()+".db")
}

type FileConfig struct {
	Network     string          `yaml:"network"`
	DataDir     string          `yaml:"dataDir"`
	Log         FileLogConfig   `yaml:"log"`
	KDF         FileKDFConfig   `yaml:"kdf"`
	Unlock      FileUnlockLimit `yaml:"unlock"`
	SealRecords *bool           `yaml:"sealRecords"`
	MetricsFile string          `yaml:"metricsFile"`
}

type FileLogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type FileKDFConfig struct {
	Time     uint32 `yaml:"time"`
	MemoryKB uint32 `yaml:"memoryKB"`
	Threads  uint8  `yaml:"threads"`
}

type FileUnlockLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Load reads configPath, or the first default location that exists, then
// applies environment overrides. A missing default file is not an error.
func Load(configPath string) (Config, error) {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/keyvault.yaml",
			filepath.Join(cfg.DataDir, "config.yaml"),
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return cfg, errors.Wrapf(err, "read config %s", path)
			}
			continue
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
		if err := Merge(&cfg, parsed); err != nil {
			return cfg, errors.Wrapf(err, "config %s", path)
		}
		break
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func Merge(dst *Config, src FileConfig) error {
	if src.Network != "" {
		network, err := models.ParseNetwork(src.Network)
		if err != nil {
			return err
		}
		dst.Network = network
	}
	if src.DataDir != "" {
		dst.DataDir = expandHome(src.DataDir)
	}
	if src.Log.Level != "" {
		dst.LogLevel = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.LogFormat = src.Log.Format
	}
	if src.KDF.Time != 0 {
		dst.KDF.Time = src.KDF.Time
	}
	if src.KDF.MemoryKB != 0 {
		dst.KDF.MemoryKB = src.KDF.MemoryKB
	}
	if src.KDF.Threads != 0 {
		dst.KDF.Threads = src.KDF.Threads
	}
	if src.Unlock.RPS != 0 {
		dst.UnlockRPS = src.Unlock.RPS
	}
	if src.Unlock.Burst != 0 {
		dst.UnlockBurst = src.Unlock.Burst
	}
	if src.SealRecords != nil {
		dst.SealRecords = *src.SealRecords
	}
	if src.MetricsFile != "" {
		dst.MetricsFile = src.MetricsFile
	}
	return nil
}

func ApplyEnvOverrides(cfg *Config) error {
	if raw := strings.TrimSpace(os.Getenv("KEYVAULT_NETWORK")); raw != "" {
		network, err := models.ParseNetwork(raw)
		if err != nil {
			return errors.Wrap(err, "KEYVAULT_NETWORK")
		}
		cfg.Network = network
	}
	if dir := strings.TrimSpace(os.Getenv("KEYVAULT_DATA_DIR")); dir != "" {
		cfg.DataDir = expandHome(dir)
	}
	if level := strings.TrimSpace(os.Getenv("KEYVAULT_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if format := strings.TrimSpace(os.Getenv("KEYVAULT_LOG_FORMAT")); format != "" {
		cfg.LogFormat = format
	}
	if raw := strings.TrimSpace(os.Getenv("KEYVAULT_SEAL_RECORDS")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return errors.Wrap(err, "KEYVAULT_SEAL_RECORDS")
		}
		cfg.SealRecords = v
	}
	if path := strings.TrimSpace(os.Getenv("KEYVAULT_METRICS_FILE")); path != "" {
		cfg.MetricsFile = path
	}
	return nil
}

func (c Config) Validate() error {
	if !c.Network.Valid() {
		return errors.Errorf("invalid network %d", c.Network)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data dir is required")
	}
	if !c.KDF.Valid() {
		return errors.Errorf("invalid kdf params %+v", c.KDF)
	}
	if c.UnlockBurst < 0 {
		return errors.New("unlock burst must not be negative")
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "keyvault")
	}
	return ".keyvault"
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
