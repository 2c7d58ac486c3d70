package chain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrChainNotFound is returned when a chain is not in the registry.
var ErrChainNotFound = errors.New("chain not found")

// UnsupportedNetwork is the display label for chain ids the registry does not know.
const UnsupportedNetwork = "Unsupported network"

// MaxDecimals bounds Currency.Decimals. Amounts are converted with a uint8
// exponent.
const MaxDecimals = 36

// Currency describes a chain's native currency (EIP-3085 shape).
type Currency struct {
	Name     string `json:"name"     validate:"required"`
	Symbol   string `json:"symbol"   validate:"required"`
	Decimals int    `json:"decimals" validate:"gte=0,lte=36"`
}

func (c Currency) check() error {
	if c.Decimals < 0 || c.Decimals > MaxDecimals {
		return fmt.Errorf("native currency decimals %d out of range 0..%d", c.Decimals, MaxDecimals)
	}
	return nil
}

// Chain holds all metadata for a single EVM chain.
type Chain struct {
	Name           string   `json:"name"            validate:"required"`
	DisplayName    string   `json:"display_name"    validate:"required"`
	ChainID        int64    `json:"chain_id"        validate:"gt=0"`
	NativeCurrency Currency `json:"native_currency"`
	RPCURLs        []string `json:"rpc_urls"        validate:"min=1,dive,url"`
	ExplorerURL    string   `json:"explorer_url"    validate:"omitempty,url"`
	// MarketplaceURL is the NFT marketplace asset base for this chain, e.g.
	// https://testnets.opensea.io/assets/mumbai. Empty = no marketplace links.
	MarketplaceURL string `json:"marketplace_url,omitempty" validate:"omitempty,url"`
	Testnet        bool   `json:"testnet"`
}

// HexID returns the chain id in the 0x-prefixed form wallets report.
func (c *Chain) HexID() string {
	return hexutil.EncodeUint64(uint64(c.ChainID))
}

// Registry is the chain registry. Safe for concurrent use; chains added at
// runtime (wallet_addEthereumChain) live alongside the built-ins.
type Registry struct {
	mu     sync.RWMutex
	chains []*Chain
	byName map[string]*Chain
	byID   map[int64]*Chain
}

// NewRegistry creates a registry seeded with the built-in chains plus extra.
// Extra chains replace built-ins with the same chain id.
func NewRegistry(extra ...Chain) *Registry {
	r := &Registry{
		byName: make(map[string]*Chain),
		byID:   make(map[int64]*Chain),
	}
	for _, c := range builtinChains() {
		r.put(c)
	}
	for _, c := range extra {
		r.put(c)
	}
	return r
}

// All returns a copy of every chain in registration order.
func (r *Registry) All() []Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, *c)
	}
	return out
}

// GetByName finds a chain by its slug name (e.g. "polygon", "mumbai").
func (r *Registry) GetByName(name string) (*Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, ErrChainNotFound
	}
	cp := *c
	return &cp, nil
}

// GetByChainID finds a chain by its numeric chain ID.
func (r *Registry) GetByChainID(id int64) (*Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, ErrChainNotFound
	}
	cp := *c
	return &cp, nil
}

// GetByHexID finds a chain by the 0x-prefixed id a wallet reports.
func (r *Registry) GetByHexID(hexID string) (*Chain, error) {
	id, err := ParseHexID(hexID)
	if err != nil {
		return nil, err
	}
	return r.GetByChainID(id)
}

// DisplayName maps a hex chain id to its display name, or UnsupportedNetwork.
func (r *Registry) DisplayName(hexID string) string {
	c, err := r.GetByHexID(hexID)
	if err != nil {
		return UnsupportedNetwork
	}
	return c.DisplayName
}

// Add registers a chain, replacing any chain with the same id or name.
func (r *Registry) Add(c Chain) error {
	if c.ChainID <= 0 {
		return fmt.Errorf("invalid chain id %d", c.ChainID)
	}
	if err := c.NativeCurrency.check(); err != nil {
		return err
	}
	if c.Name == "" {
		c.Name = strings.ToLower(strings.ReplaceAll(c.DisplayName, " ", "-"))
	}
	r.put(c)
	return nil
}

func (r *Registry) put(c Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := c
	cp.Name = strings.ToLower(cp.Name)
	if old, ok := r.byID[cp.ChainID]; ok {
		delete(r.byName, old.Name)
		*old = cp
		r.byName[cp.Name] = old
		return
	}
	r.chains = append(r.chains, &cp)
	r.byName[cp.Name] = &cp
	r.byID[cp.ChainID] = &cp
}

// ParseHexID parses a wallet-reported chain id ("0x89"). Decimal strings are
// accepted too since some providers return them.
func ParseHexID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := hexutil.DecodeUint64(strings.ToLower(s))
		if err != nil {
			return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
		}
		return int64(n), nil
	}
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid chain id %q", s)
	}
	return n, nil
}

func builtinChains() []Chain {
	eth := Currency{Name: "Ether", Symbol: "ETH", Decimals: 18}
	matic := Currency{Name: "MATIC", Symbol: "MATIC", Decimals: 18}
	pol := Currency{Name: "POL", Symbol: "POL", Decimals: 18}

	return []Chain{
		{
			Name: "ethereum", DisplayName: "Mainnet", ChainID: 1, NativeCurrency: eth,
			RPCURLs:     []string{"https://eth.llamarpc.com", "https://ethereum-rpc.publicnode.com"},
			ExplorerURL: "https://etherscan.io",
		},
		{
			Name: "goerli", DisplayName: "Goerli", ChainID: 5, NativeCurrency: eth,
			RPCURLs:     []string{"https://ethereum-goerli-rpc.publicnode.com"},
			ExplorerURL: "https://goerli.etherscan.io",
			Testnet:     true,
		},
		{
			Name: "sepolia", DisplayName: "Sepolia", ChainID: 11155111, NativeCurrency: eth,
			RPCURLs:     []string{"https://rpc.sepolia.org", "https://sepolia.gateway.tenderly.co"},
			ExplorerURL: "https://sepolia.etherscan.io",
			Testnet:     true,
		},
		{
			Name: "polygon", DisplayName: "Polygon Mainnet", ChainID: 137, NativeCurrency: pol,
			RPCURLs:        []string{"https://polygon-rpc.com", "https://polygon-bor-rpc.publicnode.com"},
			ExplorerURL:    "https://polygonscan.com",
			MarketplaceURL: "https://opensea.io/assets/matic",
		},
		{
			Name: "mumbai", DisplayName: "Polygon Mumbai Testnet", ChainID: 80001, NativeCurrency: matic,
			RPCURLs:        []string{"https://rpc-mumbai.maticvigil.com"},
			ExplorerURL:    "https://mumbai.polygonscan.com",
			MarketplaceURL: "https://testnets.opensea.io/assets/mumbai",
			Testnet:        true,
		},
		{
			Name: "amoy", DisplayName: "Polygon Amoy Testnet", ChainID: 80002, NativeCurrency: pol,
			RPCURLs:        []string{"https://rpc-amoy.polygon.technology"},
			ExplorerURL:    "https://amoy.polygonscan.com",
			MarketplaceURL: "https://testnets.opensea.io/assets/amoy",
			Testnet:        true,
		},
		{
			Name: "base", DisplayName: "Base", ChainID: 8453, NativeCurrency: eth,
			RPCURLs:     []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			ExplorerURL: "https://basescan.org",
		},
		{
			Name: "base-sepolia", DisplayName: "Base Sepolia", ChainID: 84532, NativeCurrency: eth,
			RPCURLs:     []string{"https://sepolia.base.org"},
			ExplorerURL: "https://sepolia.basescan.org",
			Testnet:     true,
		},
		{
			Name: "arbitrum", DisplayName: "Arbitrum One", ChainID: 42161, NativeCurrency: eth,
			RPCURLs:     []string{"https://arb1.arbitrum.io/rpc"},
			ExplorerURL: "https://arbiscan.io",
		},
		{
			Name: "optimism", DisplayName: "Optimism", ChainID: 10, NativeCurrency: eth,
			RPCURLs:     []string{"https://mainnet.optimism.io"},
			ExplorerURL: "https://optimistic.etherscan.io",
		},
		{
			Name: "bnb-testnet", DisplayName: "BNB Smart Chain Testnet", ChainID: 97,
			NativeCurrency: Currency{Name: "BNB", Symbol: "tBNB", Decimals: 18},
			RPCURLs:        []string{"https://data-seed-prebsc-1-s1.bnbchain.org:8545"},
			ExplorerURL:    "https://testnet.bscscan.com",
			Testnet:        true,
		},
		{
			Name: "fuji", DisplayName: "Avalanche Fuji Testnet", ChainID: 43113,
			NativeCurrency: Currency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18},
			RPCURLs:        []string{"https://api.avax-test.network/ext/bc/C/rpc"},
			ExplorerURL:    "https://testnet.snowtrace.io",
			Testnet:        true,
		},
	}
}
