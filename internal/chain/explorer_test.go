package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxURL(t *testing.T) {
	c := &Chain{ExplorerURL: "https://mumbai.polygonscan.com/"}
	assert.Equal(t, "https://mumbai.polygonscan.com/tx/0xabc", c.TxURL("0xabc"))
	assert.Equal(t, "https://mumbai.polygonscan.com/address/0xdef", c.AddressURL("0xdef"))
}

func TestTxURLNoExplorer(t *testing.T) {
	c := &Chain{}
	assert.Empty(t, c.TxURL("0xabc"))
	assert.Empty(t, c.AddressURL("0xabc"))
}

func TestTokenURL(t *testing.T) {
	c := &Chain{MarketplaceURL: "https://testnets.opensea.io/assets/mumbai"}
	assert.Equal(t,
		"https://testnets.opensea.io/assets/mumbai/0x31Df15756365D1B9C41d153c5904fF29Ae01c95F/4",
		c.TokenURL("0x31Df15756365D1B9C41d153c5904fF29Ae01c95F", 4))
	assert.Empty(t, (&Chain{}).TokenURL("0x1", 0))
}

func TestAddParamsRoundTrip(t *testing.T) {
	r := NewRegistry()
	mumbai, err := r.GetByName("mumbai")
	require.NoError(t, err)

	p := mumbai.AddParams()
	assert.Equal(t, "0x13881", p.ChainID)
	assert.Equal(t, "Polygon Mumbai Testnet", p.ChainName)
	assert.Equal(t, "MATIC", p.NativeCurrency.Symbol)
	assert.Equal(t, []string{"https://mumbai.polygonscan.com"}, p.BlockExplorerURLs)

	back, err := FromAddParams(p)
	require.NoError(t, err)
	assert.Equal(t, mumbai.ChainID, back.ChainID)
	assert.Equal(t, mumbai.DisplayName, back.DisplayName)
	assert.Equal(t, mumbai.RPCURLs, back.RPCURLs)
	assert.Equal(t, mumbai.ExplorerURL, back.ExplorerURL)
}

func TestFromAddParamsValidation(t *testing.T) {
	_, err := FromAddParams(AddChainParams{ChainID: "nope", ChainName: "x", RPCURLs: []string{"http://a"}})
	assert.Error(t, err)

	_, err = FromAddParams(AddChainParams{ChainID: "0x1", RPCURLs: []string{"http://a"}})
	assert.Error(t, err)

	_, err = FromAddParams(AddChainParams{ChainID: "0x1", ChainName: "x"})
	assert.Error(t, err)

	_, err = FromAddParams(AddChainParams{
		ChainID: "0x1", ChainName: "x", RPCURLs: []string{"http://a"},
		NativeCurrency: Currency{Name: "X", Symbol: "X", Decimals: 300},
	})
	assert.ErrorContains(t, err, "decimals")
}
