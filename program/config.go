// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/swapvault/modules"
)

// ConfigKey is the key used in config files to specify the program config.
const ConfigKey = "swapvaultConfig"

// DefaultRouterProgramID is the aggregator router swaps are pinned to unless
// configured otherwise.
var DefaultRouterProgramID = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")

var errInvalidConfig = errors.New("invalid config")

// Config is the static configuration of a deployed program.
type Config struct {
	// ProgramID is the address the program is hosted at. Vaults and the fee
	// authority are derived under it.
	ProgramID solana.PublicKey `json:"programId" yaml:"programId"`

	// RouterProgramID is the only router swaps may invoke.
	RouterProgramID solana.PublicKey `json:"routerProgramId" yaml:"routerProgramId"`

	// BootstrapAuthority is the only key allowed to initialize the
	// program config.
	BootstrapAuthority solana.PublicKey `json:"bootstrapAuthority" yaml:"bootstrapAuthority"`

	// EnforceExecutors restricts swap submission to registered executors.
	EnforceExecutors bool `json:"enforceExecutors,omitempty" yaml:"enforceExecutors,omitempty"`
}

// fileConfig is the on-disk form of Config with base58 keys.
type fileConfig struct {
	ProgramID          string `yaml:"programId"`
	RouterProgramID    string `yaml:"routerProgramId"`
	BootstrapAuthority string `yaml:"bootstrapAuthority"`
	EnforceExecutors   bool   `yaml:"enforceExecutors"`
}

// DefaultConfig returns a config pinned to the default router.
func DefaultConfig() Config {
	return Config{RouterProgramID: DefaultRouterProgramID}
}

// Key returns the config key.
func (c *Config) Key() string {
	return ConfigKey
}

// Equal reports whether c and other configure the same program.
func (c *Config) Equal(other *Config) bool {
	if other == nil {
		return false
	}
	return *c == *other
}

// Verify checks that the config can host a program.
func (c *Config) Verify() error {
	if c.ProgramID.IsZero() {
		return fmt.Errorf("%w: missing program id", errInvalidConfig)
	}
	if modules.ReservedProgramID(c.ProgramID) {
		return fmt.Errorf("%w: program id %s is reserved", errInvalidConfig, c.ProgramID)
	}
	if c.RouterProgramID.IsZero() {
		return fmt.Errorf("%w: missing router program id", errInvalidConfig)
	}
	if c.RouterProgramID == c.ProgramID {
		return fmt.Errorf("%w: router cannot be the program itself", errInvalidConfig)
	}
	if c.BootstrapAuthority.IsZero() {
		return fmt.Errorf("%w: missing bootstrap authority", errInvalidConfig)
	}
	return nil
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their defaults. The result is verified.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and verifies a YAML config.
func ParseConfig(data []byte) (Config, error) {
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := DefaultConfig()
	cfg.EnforceExecutors = raw.EnforceExecutors
	for _, field := range []struct {
		name  string
		value string
		dst   *solana.PublicKey
	}{
		{"programId", raw.ProgramID, &cfg.ProgramID},
		{"routerProgramId", raw.RouterProgramID, &cfg.RouterProgramID},
		{"bootstrapAuthority", raw.BootstrapAuthority, &cfg.BootstrapAuthority},
	} {
		if field.value == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(field.value)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", errInvalidConfig, field.name, err)
		}
		*field.dst = key
	}

	if err := cfg.Verify(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal returns the YAML form of c.
func (c *Config) Marshal() ([]byte, error) {
	raw := fileConfig{
		ProgramID:          c.ProgramID.String(),
		RouterProgramID:    c.RouterProgramID.String(),
		BootstrapAuthority: c.BootstrapAuthority.String(),
		EnforceExecutors:   c.EnforceExecutors,
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
