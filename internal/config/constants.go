package config

import "time"

// Defaults for a fresh config.
const (
	DefaultRequiredChain   = "mumbai"
	DefaultContractAddress = "0x31Df15756365D1B9C41d153c5904fF29Ae01c95F"
	DefaultTLD             = ".chrundle"
	DefaultLogLevel        = "info"
	DefaultCurrency        = "USD"
	DefaultConcurrency     = 8
)

// EnvConfigDir overrides the config directory.
const EnvConfigDir = "W3NS_CONFIG_DIR"

// Timeouts applied per CLI command. The library layer imposes none.
const (
	ReadTimeout      = 30 * time.Second // status, names, lookup
	TxConfirmTimeout = 5 * time.Minute  // register / record incl. receipt waits
	PromptTimeout    = 2 * time.Minute  // connect, network switch
)
