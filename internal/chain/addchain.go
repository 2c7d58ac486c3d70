package chain

import (
	"errors"
	"fmt"
	"strings"
)

// AddChainParams is the EIP-3085 wallet_addEthereumChain payload.
type AddChainParams struct {
	ChainID           string   `json:"chainId"`
	ChainName         string   `json:"chainName"`
	NativeCurrency    Currency `json:"nativeCurrency"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls,omitempty"`
}

// SwitchChainParams is the EIP-3326 wallet_switchEthereumChain payload.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// AddParams builds the add-chain request a wallet needs to learn about c.
func (c *Chain) AddParams() AddChainParams {
	p := AddChainParams{
		ChainID:        c.HexID(),
		ChainName:      c.DisplayName,
		NativeCurrency: c.NativeCurrency,
		RPCURLs:        append([]string(nil), c.RPCURLs...),
	}
	if c.ExplorerURL != "" {
		p.BlockExplorerURLs = []string{c.ExplorerURL}
	}
	return p
}

// FromAddParams converts a wallet_addEthereumChain payload into a Chain.
func FromAddParams(p AddChainParams) (Chain, error) {
	id, err := ParseHexID(p.ChainID)
	if err != nil {
		return Chain{}, err
	}
	if p.ChainName == "" {
		return Chain{}, errors.New("chainName is required")
	}
	if len(p.RPCURLs) == 0 {
		return Chain{}, fmt.Errorf("chain %s: at least one rpc url is required", p.ChainName)
	}
	if err := p.NativeCurrency.check(); err != nil {
		return Chain{}, fmt.Errorf("chain %s: %w", p.ChainName, err)
	}
	c := Chain{
		Name:           strings.ToLower(strings.ReplaceAll(p.ChainName, " ", "-")),
		DisplayName:    p.ChainName,
		ChainID:        id,
		NativeCurrency: p.NativeCurrency,
		RPCURLs:        p.RPCURLs,
	}
	if len(p.BlockExplorerURLs) > 0 {
		c.ExplorerURL = strings.TrimSuffix(p.BlockExplorerURLs[0], "/")
	}
	return c, nil
}
