// Package config loads the execution core's chain and store parameters
// from a TOML file, the same configuration library (naoina/toml)
// go-ethereum itself uses for node and genesis configuration.
package config

import (
	"os"

	"github.com/naoina/toml"
)

// Config is the top-level configuration document.
type Config struct {
	Chain ChainConfig
	Store StoreConfig
}

// ChainConfig holds chain parameters loaded from the configuration file.
// No other package reads them: the EVM Adapter uses its own fixed chain
// configuration (evm.Rules) and the executor uses schema.DefaultGasPrice.
type ChainConfig struct {
	ChainID        uint64
	DefaultGasLimit uint64
	DefaultGasPrice uint64 // wei
}

// StoreConfig holds State Store parameters.
type StoreConfig struct {
	DataDir string
}

// Default returns the built-in configuration used when no file is given.
func Default() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:         1,
			DefaultGasLimit: 30_000_000,
			DefaultGasPrice: 1_000_000_000,
		},
		Store: StoreConfig{
			DataDir: "./blockexec-data",
		},
	}
}

// Load reads and parses a TOML configuration file at path, starting from
// Default() so an omitted section keeps its built-in values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
