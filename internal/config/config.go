package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Mohsinsiddi/w3ns/internal/chain"
	"github.com/Mohsinsiddi/w3ns/internal/pricing"
)

const (
	configFile  = "config.json"
	walletsFile = "wallets.json"
	keysDir     = "keys"
)

var validate = validator.New()

// Load reads config from dir (or creates defaults). dir defaults to
// $W3NS_CONFIG_DIR, then ~/.w3ns.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = os.Getenv(EnvConfigDir)
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".w3ns")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.configDir = dir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save validates and writes the config to disk.
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Validate checks struct tags and the fee schedule.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// WalletsPath is where wallet metadata lives.
func (c *Config) WalletsPath() string {
	return filepath.Join(c.configDir, walletsFile)
}

// KeysDir is the file-backed keyring fallback directory.
func (c *Config) KeysDir() string {
	return filepath.Join(c.configDir, keysDir)
}

// Contract returns the registry contract address.
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// RefreshDelay is how long to wait after a mined transaction before
// refreshing the name cache.
func (c *Config) RefreshDelay() time.Duration {
	return time.Duration(c.RefreshDelayMS) * time.Millisecond
}

// Policy builds the fee schedule from Fees.
func (c *Config) Policy() (*pricing.Policy, error) {
	var t pricing.Tiers
	var err error
	if t.Three, err = decimal.NewFromString(c.Fees.Three); err != nil {
		return nil, fmt.Errorf("fees.three: %w", err)
	}
	if t.Four, err = decimal.NewFromString(c.Fees.Four); err != nil {
		return nil, fmt.Errorf("fees.four: %w", err)
	}
	if t.FivePlus, err = decimal.NewFromString(c.Fees.FivePlus); err != nil {
		return nil, fmt.Errorf("fees.five_plus: %w", err)
	}
	return pricing.NewPolicy(t)
}

// Chains returns a chain registry with CustomChains added.
func (c *Config) Chains() *chain.Registry {
	return chain.NewRegistry(c.CustomChains...)
}

// Required resolves RequiredChain (slug, hex id or decimal id) against reg.
func (c *Config) Required(reg *chain.Registry) (*chain.Chain, error) {
	if ch, err := reg.GetByName(c.RequiredChain); err == nil {
		return ch, nil
	}
	id, err := chain.ParseHexID(c.RequiredChain)
	if err != nil {
		return nil, fmt.Errorf("required chain %q: %w", c.RequiredChain, chain.ErrChainNotFound)
	}
	ch, err := reg.GetByChainID(id)
	if err != nil {
		return nil, fmt.Errorf("required chain %q: %w", c.RequiredChain, err)
	}
	return ch, nil
}

var keys = []string{
	"contract_address",
	"fees.five_plus",
	"fees.four",
	"fees.three",
	"log_level",
	"lookup_concurrency",
	"price_currency",
	"provider.preauthorized",
	"provider.url",
	"provider.wallet",
	"refresh_delay_ms",
	"required_chain",
	"tld",
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	return append([]string(nil), keys...)
}

// Get returns the string form of key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "required_chain":
		return c.RequiredChain, nil
	case "contract_address":
		return c.ContractAddress, nil
	case "tld":
		return c.TLD, nil
	case "fees.three":
		return c.Fees.Three, nil
	case "fees.four":
		return c.Fees.Four, nil
	case "fees.five_plus":
		return c.Fees.FivePlus, nil
	case "refresh_delay_ms":
		return strconv.Itoa(c.RefreshDelayMS), nil
	case "lookup_concurrency":
		return strconv.Itoa(c.LookupConcurrency), nil
	case "provider.url":
		return c.Provider.URL, nil
	case "provider.wallet":
		return c.Provider.Wallet, nil
	case "provider.preauthorized":
		return strconv.FormatBool(c.Provider.Preauthorized), nil
	case "log_level":
		return c.LogLevel, nil
	case "price_currency":
		return c.PriceCurrency, nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// Set updates key and validates the result. On error c is unchanged.
func (c *Config) Set(key, value string) error {
	next := *c
	var err error
	switch key {
	case "required_chain":
		next.RequiredChain = value
	case "contract_address":
		next.ContractAddress = value
	case "tld":
		next.TLD = value
	case "fees.three":
		next.Fees.Three = value
	case "fees.four":
		next.Fees.Four = value
	case "fees.five_plus":
		next.Fees.FivePlus = value
	case "refresh_delay_ms":
		next.RefreshDelayMS, err = parseInt(value)
	case "lookup_concurrency":
		next.LookupConcurrency, err = parseInt(value)
	case "provider.url":
		next.Provider.URL = value
	case "provider.wallet":
		next.Provider.Wallet = value
	case "provider.preauthorized":
		next.Provider.Preauthorized, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("expected true or false, got %q", value)
		}
	case "log_level":
		next.LogLevel = strings.ToLower(value)
	case "price_currency":
		next.PriceCurrency = strings.ToUpper(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*c = next
	return nil
}

func parseInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("expected an integer, got %q", v)
	}
	return n, nil
}

func defaults(dir string) *Config {
	return &Config{
		RequiredChain:   DefaultRequiredChain,
		ContractAddress: DefaultContractAddress,
		TLD:             DefaultTLD,
		Fees: Fees{
			Three:    pricing.DefaultTiers.Three.String(),
			Four:     pricing.DefaultTiers.Four.String(),
			FivePlus: pricing.DefaultTiers.FivePlus.String(),
		},
		LookupConcurrency: DefaultConcurrency,
		LogLevel:          DefaultLogLevel,
		PriceCurrency:     DefaultCurrency,
		configDir:         dir,
	}
}
