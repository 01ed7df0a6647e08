package cowswap

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxTokenDecimals bounds the decimal counts this client accepts.
	// ERC-20 metadata above this is treated as corrupt.
	MaxTokenDecimals = 36

	ZeroAddress = "0x0000000000000000000000000000000000000000"
)

// HashAppData hashes an appData document for signing and submission.
// The hash covers the exact byte serialization, so what was hashed is
// what was sent.
func HashAppData(doc json.RawMessage) common.Hash {
	if len(doc) == 0 {
		doc = json.RawMessage(`{}`)
	}
	return crypto.Keccak256Hash(doc)
}

// IsChecksumAddress reports whether s is a valid EIP-55 checksummed
// address.
func IsChecksumAddress(s string) bool {
	if !common.IsHexAddress(s) {
		return false
	}
	return common.HexToAddress(s).Hex() == s
}

// ValidateAddress parses an address, accepting checksummed or
// all-lower-case forms and rejecting anything else before a network
// call is made.
func ValidateAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, &InvalidParamError{Message: fmt.Sprintf("malformed address: %q", s)}
	}
	addr := common.HexToAddress(s)
	if s != addr.Hex() && s != strings.ToLower(addr.Hex()) {
		return common.Address{}, &InvalidParamError{Message: fmt.Sprintf("invalid address checksum: %q", s)}
	}
	return addr, nil
}

// AmountToBaseUnits converts a human-readable token amount to raw base
// units. The conversion goes through the decimal string representation
// so no precision is lost to binary floating point.
func AmountToBaseUnits(amount float64, decimals int) (*big.Int, error) {
	if amount <= 0 {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount must be positive, got: %f", amount)}
	}
	if decimals < 0 || decimals > MaxTokenDecimals {
		return nil, &InvalidParamError{Message: fmt.Sprintf("decimals must be between 0 and %d, got: %d", MaxTokenDecimals, decimals)}
	}

	amountStr := strconv.FormatFloat(amount, 'f', -1, 64)

	parts := strings.Split(amountStr, ".")
	if len(parts) > 2 {
		return nil, &InvalidParamError{Message: "invalid amount format"}
	}

	integerPart := parts[0]
	decimalPart := ""
	if len(parts) == 2 {
		decimalPart = parts[1]
	}

	if len(decimalPart) > decimals {
		decimalPart = decimalPart[:decimals]
	} else {
		decimalPart = decimalPart + strings.Repeat("0", decimals-len(decimalPart))
	}

	result, ok := new(big.Int).SetString(integerPart+decimalPart, 10)
	if !ok {
		return nil, &InvalidParamError{Message: "failed to convert amount to big.Int"}
	}

	maxUint256 := new(big.Int).Exp(big.NewInt(2), big.NewInt(256), nil)
	if result.Cmp(maxUint256) >= 0 {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount too large for uint256: %s", result.String())}
	}
	if result.Sign() <= 0 {
		return nil, &InvalidParamError{Message: "calculated amount is zero or negative"}
	}

	return result, nil
}
