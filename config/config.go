package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// TokenConfig describes one of the two configured assets.
type TokenConfig struct {
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

// Config captures runtime configuration for burnswapd.
type Config struct {
	ListenAddress    string      `toml:"ListenAddress"`
	DataDir          string      `toml:"DataDir"`
	Environment      string      `toml:"Environment"`
	SourceToken      TokenConfig `toml:"SourceToken"`
	TargetToken      TokenConfig `toml:"TargetToken"`
	AdminAddress     string      `toml:"AdminAddress"`
	InitialRatio     string      `toml:"InitialRatio"`
	LockDuration     string      `toml:"LockDuration"`
	InitialReserve   string      `toml:"InitialReserve"`
	RejectZeroOutput bool        `toml:"RejectZeroOutput"`
}

const defaultConfig = `# burnswapd configuration
ListenAddress = ":8645"
DataDir = "./data"
Environment = "dev"

# Administrator address with exclusive rights over ratio, timelock and withdrawals.
AdminAddress = ""

# Exchange rate numerator over a fixed scale of 10000000000 (scale = 1:1).
InitialRatio = "10000000000"

# Duration the target reserve stays locked against administrator withdrawal.
LockDuration = "720h"

# Optional target-token amount minted into engine custody at first boot.
InitialReserve = "0"

# Reject exchanges whose target amount floors to zero instead of burning for nothing.
RejectZeroOutput = false

[SourceToken]
Symbol = "OLD"
Decimals = 18

[TargetToken]
Symbol = "NEW"
Decimals = 18
`

// Load reads the configuration from the given path, writing a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("config: write default %s: %w", path, err)
	}
	return nil
}

// Validate checks every field that later stages depend on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	source := strings.ToUpper(strings.TrimSpace(c.SourceToken.Symbol))
	target := strings.ToUpper(strings.TrimSpace(c.TargetToken.Symbol))
	if source == "" || target == "" {
		return fmt.Errorf("config: both token symbols required")
	}
	if source == target {
		return fmt.Errorf("config: source and target symbols must differ")
	}
	if _, err := c.Admin(); err != nil {
		return err
	}
	if _, err := c.Ratio(); err != nil {
		return err
	}
	if _, err := c.Lock(); err != nil {
		return err
	}
	if _, err := c.Reserve(); err != nil {
		return err
	}
	return nil
}

// Admin parses the configured administrator address.
func (c *Config) Admin() ([20]byte, error) {
	var admin [20]byte
	raw := strings.TrimSpace(c.AdminAddress)
	if !ethcommon.IsHexAddress(raw) {
		return admin, fmt.Errorf("config: AdminAddress %q is not a hex address", c.AdminAddress)
	}
	copy(admin[:], ethcommon.HexToAddress(raw).Bytes())
	if admin == ([20]byte{}) {
		return admin, fmt.Errorf("config: AdminAddress must not be the zero address")
	}
	return admin, nil
}

// Ratio parses the initial exchange ratio.
func (c *Config) Ratio() (*big.Int, error) {
	return parsePositiveAmount("InitialRatio", c.InitialRatio)
}

// Lock parses the configured lock duration.
func (c *Config) Lock() (time.Duration, error) {
	raw := strings.TrimSpace(c.LockDuration)
	if raw == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse LockDuration %q: %w", c.LockDuration, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("config: LockDuration must not be negative")
	}
	return parsed, nil
}

// Reserve parses the optional initial reserve mint.
func (c *Config) Reserve() (*big.Int, error) {
	return parsePositiveAmount("InitialReserve", c.InitialReserve)
}

func parsePositiveAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("config: %s %q is not a non-negative integer", field, raw)
	}
	return parsed, nil
}
