package cowswap

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Network identifies a blockchain network by chain ID.
type Network int64

const (
	NetworkMainnet     Network = 1
	NetworkOptimism    Network = 10
	NetworkGnosis      Network = 100
	NetworkPolygon     Network = 137
	NetworkBase        Network = 8453
	NetworkArbitrumOne Network = 42161
	NetworkSepolia     Network = 11155111
)

// SupportedNetworks lists the networks the settlement orderbook serves.
// Polygon and Optimism exist as Network values for oracle availability
// checks but have no orderbook deployment.
var SupportedNetworks = []Network{
	NetworkMainnet,
	NetworkGnosis,
	NetworkBase,
	NetworkArbitrumOne,
	NetworkSepolia,
}

// SettlementContract is the settlement contract address, identical on
// every deployed network.
const SettlementContract = "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"

// Deployment holds the per-network endpoints and contract addresses.
type Deployment struct {
	APIBaseURL         string
	SettlementContract string
	WrappedNativeToken string
}

// DefaultDeployments maps supported networks to their deployments.
var DefaultDeployments = map[Network]Deployment{
	NetworkMainnet: {
		APIBaseURL:         "https://api.cow.fi/mainnet/api/v1",
		SettlementContract: SettlementContract,
		WrappedNativeToken: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
	},
	NetworkGnosis: {
		APIBaseURL:         "https://api.cow.fi/xdai/api/v1",
		SettlementContract: SettlementContract,
		WrappedNativeToken: "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d",
	},
	NetworkBase: {
		APIBaseURL:         "https://api.cow.fi/base/api/v1",
		SettlementContract: SettlementContract,
		WrappedNativeToken: "0x4200000000000000000000000000000000000006",
	},
	NetworkArbitrumOne: {
		APIBaseURL:         "https://api.cow.fi/arbitrum_one/api/v1",
		SettlementContract: SettlementContract,
		WrappedNativeToken: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
	},
	NetworkSepolia: {
		APIBaseURL:         "https://api.cow.fi/sepolia/api/v1",
		SettlementContract: SettlementContract,
		WrappedNativeToken: "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14",
	},
}

// IsSupportedNetwork reports whether the orderbook serves the network.
func IsSupportedNetwork(network Network) bool {
	_, ok := DefaultDeployments[network]
	return ok
}

// LoadClientConfig reads a ClientConfig from a yaml file. Timeouts are
// written in time.ParseDuration form, "5s" or "1m30s".
func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var file struct {
		Network     Network `yaml:"network"`
		APIBaseURL  string  `yaml:"api_base_url"`
		HTTPTimeout string  `yaml:"http_timeout"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Network = file.Network
	cfg.APIBaseURL = file.APIBaseURL
	if file.HTTPTimeout != "" {
		cfg.HTTPTimeout, err = time.ParseDuration(file.HTTPTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parse config %s: http_timeout: %w", path, err)
		}
	}

	return cfg, nil
}
