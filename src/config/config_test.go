package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitte-ai/go-mcp-proxy/src/evm"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/goat"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/mcpupstream"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/plugins"
)

var overrideKeys = []string{
	"BITTE_REGISTRY_URL", "BITTE_RUNTIME_URL", "BITTE_API_KEY", "PORT", "MCP_TRANSPORT",
	"LOG_LEVEL", "ETH_RPC_URL", "WALLET_ADDRESS", "CHAIN_ID",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range overrideKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, TransportSSE, cfg.Server.Transport)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/sse", cfg.Server.SSEEndpoint)
	assert.Equal(t, "https://registry.bitte.ai", cfg.Registry.URL)
	assert.Equal(t, 30*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, evm.DefaultAddress, cfg.Chain.WalletAddress)
	assert.Equal(t, uint64(1), cfg.Chain.ChainID)
	require.Len(t, cfg.Tokens, 1)
	assert.Equal(t, "USDC", cfg.Tokens[0].Symbol)
	assert.Equal(t, ":3000", cfg.Server.Addr())
}

func TestLoadYAMLWithSubstitution(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPSTREAM_TOKEN", "secret")
	envFile := writeFile(t, ".env", "PLUGIN_HOST=plugins.example.com\nBITTE_API_KEY=from-dotenv\n")
	path := writeFile(t, "proxy.yaml", `
server:
  transport: streamable
  port: 8080
registry:
  timeout: 5s
chain:
  chainId: 8453
tokens:
  - symbol: DAI
    decimals: 18
    contracts:
      1: "0x6B175474E89094C44Da98b954EedeAC495271d0F"
upstreams:
  - name: docs
    url: https://mcp.example.com/mcp
    headers:
      Authorization: Bearer ${UPSTREAM_TOKEN}
plugins:
  - name: pets
    spec: https://$PLUGIN_HOST/openapi.json
`)

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, TransportStreamable, cfg.Server.Transport)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, uint64(8453), cfg.Chain.ChainID)
	assert.Equal(t, "from-dotenv", cfg.Registry.APIKey)
	assert.Equal(t, "https://registry.bitte.ai", cfg.Registry.URL)

	require.Len(t, cfg.Tokens, 1)
	assert.Equal(t, uint8(18), cfg.Tokens[0].Decimals)
	assert.Equal(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", cfg.Tokens[0].Contracts[1])

	require.Len(t, cfg.Upstreams, 1)
	assert.Equal(t, "Bearer secret", cfg.Upstreams[0].Headers["Authorization"])
	require.Len(t, cfg.Plugins, 1)
	assert.Equal(t, "https://plugins.example.com/openapi.json", cfg.Plugins[0].Spec)
}

func TestMissingVariable(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "proxy.yaml", "registry:\n  apiKey: ${DEFINITELY_NOT_SET_42}\n")
	_, err := Load(path, "")
	var nf *VariableNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "DEFINITELY_NOT_SET_42", nf.VariableName)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4100")
	t.Setenv("MCP_TRANSPORT", "stdio")
	t.Setenv("CHAIN_ID", "10")
	t.Setenv("BITTE_RUNTIME_URL", "http://localhost:9000")

	path := writeFile(t, "proxy.yaml", "server:\n  port: 8080\n")
	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, uint64(10), cfg.Chain.ChainID)
	assert.Equal(t, "http://localhost:9000", cfg.Registry.RuntimeURL)

	t.Setenv("PORT", "not-a-port")
	_, err = Load("", "")
	assert.Error(t, err)
}

func TestLoaderVariablesTakePrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("WALLET_ADDRESS", "0x0000000000000000000000000000000000000001")
	l := NewLoader("")
	l.Variables["WALLET_ADDRESS"] = "0x0000000000000000000000000000000000000002"
	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000002", cfg.Chain.WalletAddress)

	out, err := l.Expand("addr=${WALLET_ADDRESS}")
	require.NoError(t, err)
	assert.Equal(t, "addr=0x0000000000000000000000000000000000000002", out)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"transport": func(c *Config) { c.Server.Transport = "carrier-pigeon" },
		"port":      func(c *Config) { c.Server.Port = 70000 },
		"wallet":    func(c *Config) { c.Chain.WalletAddress = "0x123" },
		"token":     func(c *Config) { c.Tokens = []goat.Token{{Symbol: ""}} },
		"builtin clash": func(c *Config) {
			c.Plugins = []plugins.Config{{Name: "goat", Spec: "x.json"}}
		},
		"duplicate": func(c *Config) {
			c.Upstreams = []mcpupstream.Config{{Name: "a", URL: "https://a"}}
			c.Plugins = []plugins.Config{{Name: "a", Spec: "a.json"}}
		},
		"upstream": func(c *Config) {
			c.Upstreams = []mcpupstream.Config{{Name: "a", URL: "https://a", Command: []string{"x"}}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	c := Default()
	c.Server.Transport = TransportStdio
	c.Server.Port = 0
	assert.NoError(t, c.Validate())
}
