package config

import "github.com/Mohsinsiddi/w3ns/internal/chain"

// Config holds all w3ns configuration.
type Config struct {
	RequiredChain     string         `json:"required_chain"     validate:"required"`
	ContractAddress   string         `json:"contract_address"   validate:"required,eth_addr"`
	TLD               string         `json:"tld"                validate:"required,startswith=."`
	Fees              Fees           `json:"fees"`
	RefreshDelayMS    int            `json:"refresh_delay_ms"   validate:"gte=0,lte=600000"`
	LookupConcurrency int            `json:"lookup_concurrency" validate:"gte=1,lte=64"`
	Provider          ProviderConfig `json:"provider"`
	LogLevel          string         `json:"log_level"          validate:"oneof=debug info warn error"`
	PriceCurrency     string         `json:"price_currency"     validate:"required,alpha"`
	CustomChains      []chain.Chain  `json:"custom_chains"      validate:"dive"`

	// internal: config dir path used for Save()
	configDir string
}

// Fees are decimal strings in whole native-currency units.
type Fees struct {
	Three    string `json:"three"     validate:"required,numeric"`
	Four     string `json:"four"      validate:"required,numeric"`
	FivePlus string `json:"five_plus" validate:"required,numeric"`
}

// ProviderConfig selects the wallet provider. With URL set the CLI talks to
// an external EIP-1193 endpoint; otherwise it uses the local keychain wallet
// named by Wallet (or the default wallet).
type ProviderConfig struct {
	URL           string `json:"url,omitempty"    validate:"omitempty,url"`
	Wallet        string `json:"wallet,omitempty"`
	Preauthorized bool   `json:"preauthorized"`
}
