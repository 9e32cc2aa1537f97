package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
)

type fn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type record struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Function    *fn      `json:"function,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func fixtures() []record {
	return []record{
		{Name: "get_balance", Description: "Read the native balance of an address"},
		{Name: "ERC20ActionProvider_transfer", Description: "Move ERC20 tokens"},
		{Name: "transfer", Description: "Send tokens to a recipient"},
		{Name: "swap", Function: &fn{Name: "uniswap-quote", Description: "Quote a Uniswap trade"}},
		{Name: "pyth", Description: "Price feeds", Tags: []string{"oracle", "prices"}},
	}
}

func TestSearchRanksAndTruncates(t *testing.T) {
	res, err := Search(fixtures(), "transfer", Options{Keys: []string{"name"}, Limit: 5, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, res, 2)

	// the exact name wins over the longer name containing it
	assert.Equal(t, "transfer", res[0].Item.Name)
	assert.Equal(t, 2, res[0].RefIndex)
	assert.Equal(t, "ERC20ActionProvider_transfer", res[1].Item.Name)
	assert.LessOrEqual(t, res[0].Score, res[1].Score)

	res, err = Search(fixtures(), "transfer", Options{Keys: []string{"name"}, Limit: 1, Threshold: 0.1})
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestSearchToleratesTypos(t *testing.T) {
	res, err := Search(fixtures(), "balanse", Options{Keys: []string{"name"}, Threshold: 0.3})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "get_balance", res[0].Item.Name)
	assert.Greater(t, res[0].Score, 0.0)

	res, err = Search(fixtures(), "balanse", Options{Keys: []string{"name"}, Threshold: 0.05})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchNestedAndArrayKeys(t *testing.T) {
	res, err := Search(fixtures(), "uniswap", Options{Keys: []string{"function.name"}, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "swap", res[0].Item.Name)

	res, err = Search(fixtures(), "oracle", Options{Keys: []string{"tags"}, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 4, res[0].RefIndex)
}

func TestSearchCaseAndAccentInsensitive(t *testing.T) {
	records := []record{{Name: "Café Órders"}}
	res, err := Search(records, "cafe orders", Options{Keys: []string{"name"}, Threshold: 0.1})
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestSearchMultiWordQuery(t *testing.T) {
	res, err := Search(fixtures(), "tokens recipient", Options{Keys: []string{"description"}, Threshold: 0.2})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "transfer", res[0].Item.Name)
}

func TestSearchWildcardReturnsEverything(t *testing.T) {
	recs := fixtures()
	res, err := Search(recs, Wildcard, Options{Keys: []string{"name"}, Limit: 1, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, res, len(recs))
	for i, r := range res {
		assert.Equal(t, i, r.RefIndex)
		assert.Equal(t, 1.0, r.Score)
		assert.Equal(t, recs[i].Name, r.Item.Name)
	}
}

func TestSearchThresholdBounds(t *testing.T) {
	res, err := Search(fixtures(), "zzzzqqqq", Options{Keys: []string{"name"}, Threshold: 1})
	require.NoError(t, err)
	assert.Len(t, res, len(fixtures()))

	res, err = Search(fixtures(), "swap", Options{Keys: []string{"name"}, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 0.0, res[0].Score)
}

func TestSearchMissingKeysMatchNothing(t *testing.T) {
	res, err := Search(fixtures(), "swap", Options{Keys: []string{"nope"}, Threshold: 1})
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = Search(fixtures(), "   ", Options{Keys: []string{"name"}, Threshold: 1})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchDoesNotMutate(t *testing.T) {
	recs := fixtures()
	before := fixtures()
	_, err := Search(recs, "transfer", Options{Keys: []string{"name"}, Threshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, before, recs)
}

func TestSearchValue(t *testing.T) {
	decoded := []interface{}{
		map[string]interface{}{"name": "alpha"},
		map[string]interface{}{"name": "beta"},
	}
	res, err := SearchValue(decoded, "beta", Options{Keys: []string{"name"}, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 1, res[0].RefIndex)

	_, err = SearchValue(map[string]interface{}{"name": "alpha"}, "alpha", Options{Keys: []string{"name"}})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = SearchValue(nil, "alpha", Options{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestSubstringDistance(t *testing.T) {
	assert.Equal(t, 0, substringDistance([]rune("fer"), []rune("transfer")))
	assert.Equal(t, 1, substringDistance([]rune("tranzfer"), []rune("transfer")))
	assert.Equal(t, 3, substringDistance([]rune("abc"), []rune("")))
}
