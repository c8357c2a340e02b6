// Package config loads the node configuration from a TOML file.
package config

import (
	"fadingrose/rosy-ledger/core"
	"fadingrose/rosy-ledger/core/rawdb"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/pelletier/go-toml"
)

// Config holds the application configuration
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Runtime  RuntimeConfig  `toml:"runtime"`
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Genesis  GenesisConfig  `toml:"genesis"`
}

type DatabaseConfig struct {
	Backend string `toml:"backend"` // "memory", "leveldb" or "badger"
	Path    string `toml:"path"`
}

type RuntimeConfig struct {
	GasLimit uint64 `toml:"gas_limit"`
	MaxDepth int    `toml:"max_depth"`
	Trace    bool   `toml:"trace"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

// GenesisConfig funds accounts the first time a store is opened. Balances
// are decimal or 0x-prefixed hex strings.
type GenesisConfig struct {
	Alloc map[string]string `toml:"alloc"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Backend: rawdb.BackendMemory},
		Runtime: RuntimeConfig{
			GasLimit: core.DefaultGasLimit,
			MaxDepth: int(params.CallCreateDepth),
		},
		Log:    LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{Listen: "127.0.0.1:8545"},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(file, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be caught at parse time.
func (c Config) Validate() error {
	switch c.Database.Backend {
	case rawdb.BackendMemory, "":
	case rawdb.BackendLevelDB, rawdb.BackendBadger:
		if c.Database.Path == "" {
			return fmt.Errorf("database: backend %s needs a path", c.Database.Backend)
		}
	default:
		return fmt.Errorf("database: unknown backend %q", c.Database.Backend)
	}
	if c.Runtime.MaxDepth < 0 {
		return fmt.Errorf("runtime: negative max_depth %d", c.Runtime.MaxDepth)
	}
	_, err := c.Genesis.Balances()
	return err
}

// Processor returns the processor settings. The tracer is installed by the
// caller.
func (c Config) Processor() core.Config {
	return core.Config{GasLimit: c.Runtime.GasLimit, MaxDepth: c.Runtime.MaxDepth}
}

// Balances parses the allocation.
func (g GenesisConfig) Balances() (map[common.Address]*uint256.Int, error) {
	alloc := make(map[common.Address]*uint256.Int, len(g.Alloc))
	for addr, bal := range g.Alloc {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("genesis: invalid address %q", addr)
		}
		amount, err := uint256.FromDecimal(bal)
		if err != nil {
			if amount, err = uint256.FromHex(bal); err != nil {
				return nil, fmt.Errorf("genesis: invalid balance %q for %s", bal, addr)
			}
		}
		alloc[common.HexToAddress(addr)] = amount
	}
	return alloc, nil
}
