package chain

import (
	"fmt"
	"strings"
)

// TxURL returns the block-explorer page for a transaction hash, or "" if the
// chain has no explorer.
func (c *Chain) TxURL(hash string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.ExplorerURL, "/") + "/tx/" + hash
}

// AddressURL returns the block-explorer page for an address.
func (c *Chain) AddressURL(addr string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.ExplorerURL, "/") + "/address/" + addr
}

// TokenURL returns the marketplace page for a registry token. Registries mint
// names as sequential token ids, so tokenID is the name's enumeration index.
func (c *Chain) TokenURL(contract string, tokenID int) string {
	if c.MarketplaceURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%d", strings.TrimSuffix(c.MarketplaceURL, "/"), contract, tokenID)
}
