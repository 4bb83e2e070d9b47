package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// category is fixed: the exit bot only manages linear USDT perpetuals
const category = "linear"

// Environment selects which Bybit installation the client talks to
type Environment int

const (
	EnvMainnet Environment = iota
	EnvTestnet
	EnvDemo // Paper-trading environment with real market data
)

func (e Environment) String() string {
	switch e {
	case EnvTestnet:
		return "testnet"
	case EnvDemo:
		return "demo"
	default:
		return "mainnet"
	}
}

// restBase returns the REST base URL for the environment. Demo trading
// has no constant in the SDK.
func (e Environment) restBase() string {
	switch e {
	case EnvTestnet:
		return bybit_api.TESTNET
	case EnvDemo:
		return "https://api-demo.bybit.com"
	default:
		return bybit_api.MAINNET
	}
}

// streamHost returns the public websocket host for the environment
func (e Environment) streamHost() string {
	switch e {
	case EnvTestnet:
		return "stream-testnet.bybit.com"
	case EnvDemo:
		return "stream-demo.bybit.com"
	default:
		return "stream.bybit.com"
	}
}

// Config holds Bybit connectivity settings. Credentials are filled from
// the environment by the config loader, never from the file itself.
type Config struct {
	APIKey    string `json:"-"`
	APISecret string `json:"-"`
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"`
}

func (c Config) environment() Environment {
	// Demo wins when both flags are set; it is the safer target
	if c.Demo {
		return EnvDemo
	}
	if c.Testnet {
		return EnvTestnet
	}
	return EnvMainnet
}

// Client is the bot's Bybit v5 REST surface: market data, account
// state and reduce-only closes. All calls go through the official SDK.
type Client struct {
	httpClient *bybit_api.Client
	env        Environment
}

// NewClient creates a Bybit client for the configured environment
func NewClient(config Config) *Client {
	env := config.environment()
	return &Client{
		httpClient: bybit_api.NewBybitHttpClient(
			config.APIKey,
			config.APISecret,
			bybit_api.WithBaseURL(env.restBase()),
		),
		env: env,
	}
}

// Environment names the installation this client targets
func (c *Client) Environment() string {
	return c.env.String()
}

// StreamHost returns the public websocket host matching the REST
// environment
func (c *Client) StreamHost() string {
	return c.env.streamHost()
}
