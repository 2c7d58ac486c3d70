package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const coinGeckoURL = "https://api.coingecko.com/api/v3"

// coinGeckoIDs maps chain names to the CoinGecko id of their native token.
// Testnet tokens are quoted at their mainnet counterpart.
var coinGeckoIDs = map[string]string{
	"ethereum":     "ethereum",
	"goerli":       "ethereum",
	"sepolia":      "ethereum",
	"base":         "ethereum",
	"base-sepolia": "ethereum",
	"arbitrum":     "ethereum",
	"optimism":     "ethereum",
	"polygon":      "matic-network",
	"mumbai":       "matic-network",
	"amoy":         "matic-network",
	"bnb-testnet":  "binancecoin",
	"fuji":         "avalanche-2",
}

// FiatQuoter quotes native tokens in a fiat currency via CoinGecko.
type FiatQuoter struct {
	client   *http.Client
	baseURL  string
	currency string
}

// NewFiatQuoter creates a quoter for currency (default "usd").
func NewFiatQuoter(currency string) *FiatQuoter {
	if currency == "" {
		currency = "usd"
	}
	return &FiatQuoter{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  coinGeckoURL,
		currency: strings.ToLower(currency),
	}
}

// Currency returns the quote currency.
func (q *FiatQuoter) Currency() string { return q.currency }

// Quote returns the price of one native token of chainName.
func (q *FiatQuoter) Quote(ctx context.Context, chainName string) (decimal.Decimal, error) {
	id, ok := coinGeckoIDs[strings.ToLower(chainName)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price source for chain %s", chainName)
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s", q.baseURL, id, q.currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fetching price: http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading price response: %w", err)
	}

	// {"matic-network":{"usd":0.71}}
	var raw map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("parsing price response: %w", err)
	}
	p, ok := raw[id][q.currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("price not available for %s in %s", id, q.currency)
	}
	return p, nil
}

// Estimate converts fee, in native units of chainName, to fiat.
func (q *FiatQuoter) Estimate(ctx context.Context, chainName string, fee decimal.Decimal) (decimal.Decimal, error) {
	p, err := q.Quote(ctx, chainName)
	if err != nil {
		return decimal.Zero, err
	}
	return fee.Mul(p).Round(2), nil
}
