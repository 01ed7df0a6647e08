package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ERC20 ABI JSON for the metadata reads the client needs
const erc20ABIJSON = `[
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	}
]`

// SuperToken ABI JSON for resolving a wrapper token to its underlying
const superTokenABIJSON = `[
	{
		"constant": true,
		"inputs": [],
		"name": "getUnderlyingToken",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	}
]`

// GetERC20ABI returns the parsed ERC20 ABI
func GetERC20ABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC20 ABI: " + err.Error())
	}
	return parsed
}

// GetSuperTokenABI returns the parsed SuperToken ABI
func GetSuperTokenABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(superTokenABIJSON))
	if err != nil {
		panic("failed to parse SuperToken ABI: " + err.Error())
	}
	return parsed
}
