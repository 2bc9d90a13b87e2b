package chain

import "fmt"

// Network identifies a TON network.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// NetworkConfig holds endpoints for a TON network.
// Invariant: IsTestnet is true iff Name is Testnet.
type NetworkConfig struct {
	Name        Network `yaml:"name"`
	APIURL      string  `yaml:"api_url"`
	StreamURL   string  `yaml:"stream_url"`
	ExplorerURL string  `yaml:"explorer_url"`
	Currency    string  `yaml:"currency"`
	Decimals    uint8   `yaml:"decimals"`
	IsTestnet   bool    `yaml:"is_testnet"`
}

// DefaultNetworks returns the built-in network configurations
func DefaultNetworks() map[Network]*NetworkConfig {
	return map[Network]*NetworkConfig{
		Mainnet: {
			Name:        Mainnet,
			APIURL:      "https://tonapi.io",
			StreamURL:   "wss://tonapi.io/v2/websocket",
			ExplorerURL: "https://tonviewer.com",
			Currency:    "TON",
			Decimals:    9,
			IsTestnet:   false,
		},
		Testnet: {
			Name:        Testnet,
			APIURL:      "https://testnet.tonapi.io",
			StreamURL:   "wss://testnet.tonapi.io/v2/websocket",
			ExplorerURL: "https://testnet.tonviewer.com",
			Currency:    "TON",
			Decimals:    9,
			IsTestnet:   true,
		},
	}
}

// LookupNetwork returns the configuration for a named network
func LookupNetwork(name string) (*NetworkConfig, error) {
	cfg, ok := DefaultNetworks()[Network(name)]
	if !ok {
		return nil, fmt.Errorf("unknown network: %s", name)
	}
	return cfg, nil
}
