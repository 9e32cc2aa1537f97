// Package config loads the proxy configuration from YAML, a .env file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/bitte-ai/go-mcp-proxy/src/evm"
	"github.com/bitte-ai/go-mcp-proxy/src/registry"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/agentkit"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/goat"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/mcpupstream"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/plugins"
)

const (
	TransportSSE        = "sse"
	TransportStdio      = "stdio"
	TransportStreamable = "streamable"

	DefaultPort        = 3000
	DefaultSSEEndpoint = "/sse"
	DefaultMCPEndpoint = "/mcp"
	DefaultTimeout     = 30 * time.Second
	DefaultServerName  = "bitte-ai-mcp-proxy"
)

// VariableNotFoundError is returned when a ${VAR} reference cannot be resolved.
type VariableNotFoundError struct {
	VariableName string
}

func (e *VariableNotFoundError) Error() string {
	return fmt.Sprintf(
		"variable %q referenced in configuration not found; "+
			"add it to the environment or to the .env file",
		e.VariableName,
	)
}

type ServerConfig struct {
	Name        string `yaml:"name"`
	Transport   string `yaml:"transport"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	SSEEndpoint string `yaml:"sseEndpoint"`
	MCPEndpoint string `yaml:"mcpEndpoint"`
}

// Addr is the listen address for network transports.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type RegistryConfig struct {
	URL        string        `yaml:"url"`
	RuntimeURL string        `yaml:"runtimeUrl"`
	APIKey     string        `yaml:"apiKey"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ChainConfig struct {
	RPCURL        string `yaml:"rpcUrl"`
	WalletAddress string `yaml:"walletAddress"`
	ChainID       uint64 `yaml:"chainId"`
}

type PythConfig struct {
	URL      string `yaml:"url"`
	Disabled bool   `yaml:"disabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full proxy configuration.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Registry  RegistryConfig       `yaml:"registry"`
	Chain     ChainConfig          `yaml:"chain"`
	Tokens    []goat.Token         `yaml:"tokens"`
	Pyth      PythConfig           `yaml:"pyth"`
	Upstreams []mcpupstream.Config `yaml:"upstreams"`
	Plugins   []plugins.Config     `yaml:"plugins"`
	Log       LogConfig            `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        DefaultServerName,
			Transport:   TransportSSE,
			Port:        DefaultPort,
			SSEEndpoint: DefaultSSEEndpoint,
			MCPEndpoint: DefaultMCPEndpoint,
		},
		Registry: RegistryConfig{
			URL:        registry.DefaultRegistryURL,
			RuntimeURL: registry.DefaultRuntimeURL,
			Timeout:    DefaultTimeout,
		},
		Chain: ChainConfig{
			WalletAddress: evm.DefaultAddress,
			ChainID:       1,
		},
		Pyth: PythConfig{URL: agentkit.DefaultHermesURL},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Loader resolves variables from explicit values, the process environment and an
// optional .env file, in that order.
type Loader struct {
	Variables   map[string]string
	EnvFilePath string

	dotenv map[string]string
}

// NewLoader returns a Loader reading envFile (which may be empty or missing).
func NewLoader(envFile string) *Loader {
	return &Loader{Variables: map[string]string{}, EnvFilePath: envFile}
}

func (l *Loader) loadDotEnv() error {
	l.dotenv = map[string]string{}
	if l.EnvFilePath == "" {
		return nil
	}
	vars, err := godotenv.Read(l.EnvFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", l.EnvFilePath, err)
	}
	l.dotenv = vars
	return nil
}

// Get looks up one variable.
func (l *Loader) Get(key string) (string, error) {
	if v, ok := l.Variables[key]; ok {
		return v, nil
	}
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	if v, ok := l.dotenv[key]; ok && v != "" {
		return v, nil
	}
	return "", &VariableNotFoundError{VariableName: key}
}

func (l *Loader) lookup(key string) (string, bool) {
	v, err := l.Get(key)
	return v, err == nil
}

// Load reads path (optional), substitutes variables, applies environment overrides and
// validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	if err := l.loadDotEnv(); err != nil {
		return nil, err
	}
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := l.decode(raw, cfg); err != nil {
			return nil, err
		}
	}
	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Tokens) == 0 {
		cfg.Tokens = []goat.Token{goat.USDC}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is shorthand for NewLoader(envFile).Load(path).
func Load(path, envFile string) (*Config, error) {
	return NewLoader(envFile).Load(path)
}

func (l *Loader) decode(raw []byte, cfg *Config) error {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if root.Kind == 0 {
		return nil
	}
	if err := l.substitute(&root); err != nil {
		return err
	}
	if err := root.Decode(cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

var varRe = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`)

// substitute replaces ${VAR} and $VAR in every scalar of the tree.
func (l *Loader) substitute(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		out, err := l.Expand(n.Value)
		if err != nil {
			return err
		}
		n.Value = out
		return nil
	}
	for _, c := range n.Content {
		if err := l.substitute(c); err != nil {
			return err
		}
	}
	return nil
}

// Expand substitutes variables in s. The first unresolved variable fails the call.
func (l *Loader) Expand(s string) (string, error) {
	var missing error
	out := varRe.ReplaceAllStringFunc(s, func(match string) string {
		g := varRe.FindStringSubmatch(match)
		name := g[1]
		if name == "" {
			name = g[2]
		}
		val, err := l.Get(name)
		if err != nil {
			if missing == nil {
				missing = err
			}
			return match
		}
		return val
	})
	return out, missing
}

func (l *Loader) applyEnv(cfg *Config) error {
	str := map[string]*string{
		"BITTE_REGISTRY_URL": &cfg.Registry.URL,
		"BITTE_RUNTIME_URL":  &cfg.Registry.RuntimeURL,
		"BITTE_API_KEY":      &cfg.Registry.APIKey,
		"MCP_TRANSPORT":      &cfg.Server.Transport,
		"LOG_LEVEL":          &cfg.Log.Level,
		"ETH_RPC_URL":        &cfg.Chain.RPCURL,
		"WALLET_ADDRESS":     &cfg.Chain.WalletAddress,
	}
	for key, dst := range str {
		if v, ok := l.lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := l.lookup("PORT"); ok {
		port, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := l.lookup("CHAIN_ID"); ok {
		id, err := cast.ToUint64E(v)
		if err != nil {
			return fmt.Errorf("CHAIN_ID: %w", err)
		}
		cfg.Chain.ChainID = id
	}
	return nil
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportSSE, TransportStreamable:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid port %d", c.Server.Port)
		}
	case TransportStdio:
	default:
		return fmt.Errorf("unknown transport %q (want sse, stdio or streamable)", c.Server.Transport)
	}
	if !evm.IsAddress(c.Chain.WalletAddress) {
		return fmt.Errorf("invalid wallet address %q", c.Chain.WalletAddress)
	}
	for _, t := range c.Tokens {
		if strings.TrimSpace(t.Symbol) == "" {
			return errors.New("token symbol is required")
		}
		for chain, addr := range t.Contracts {
			if !evm.IsAddress(addr) {
				return fmt.Errorf("token %s: invalid contract %q on chain %d", t.Symbol, addr, chain)
			}
		}
	}

	seen := map[string]bool{goat.Name: true, agentkit.Name: true, registry.SourceName: true}
	claim := func(name string) error {
		if seen[name] {
			return fmt.Errorf("duplicate source name %q", name)
		}
		seen[name] = true
		return nil
	}
	for _, u := range c.Upstreams {
		if err := u.Validate(); err != nil {
			return err
		}
		if err := claim(u.Name); err != nil {
			return err
		}
	}
	for _, p := range c.Plugins {
		if err := p.Validate(); err != nil {
			return err
		}
		if err := claim(p.Name); err != nil {
			return err
		}
	}
	return nil
}
