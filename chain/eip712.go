package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidOrderKind     = errors.New("invalid order kind")
	ErrInvalidBalanceSource = errors.New("invalid balance source")
)

// EIP712 domain constants of the settlement contract
const (
	EIP712DomainName    = "Gnosis Protocol"
	EIP712DomainVersion = "v2"
)

// Pre-computed type hashes using keccak256
var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	// Order(address sellToken,address buyToken,address receiver,uint256 sellAmount,uint256 buyAmount,uint32 validTo,bytes32 appData,uint256 feeAmount,string kind,bool partiallyFillable,string sellTokenBalance,string buyTokenBalance)
	OrderTypeHash = crypto.Keccak256Hash([]byte(
		"Order(address sellToken,address buyToken,address receiver,uint256 sellAmount,uint256 buyAmount,uint32 validTo,bytes32 appData,uint256 feeAmount,string kind,bool partiallyFillable,string sellTokenBalance,string buyTokenBalance)",
	))

	// String fields are represented by their keccak256 hash in the
	// encoded struct, per EIP712.
	KindSellHash = crypto.Keccak256Hash([]byte("sell"))
	KindBuyHash  = crypto.Keccak256Hash([]byte("buy"))

	BalanceERC20Hash    = crypto.Keccak256Hash([]byte("erc20"))
	BalanceExternalHash = crypto.Keccak256Hash([]byte("external"))
	BalanceInternalHash = crypto.Keccak256Hash([]byte("internal"))
)

// EIP712Domain represents the EIP712 domain separator data. Any change
// to chain id or verifying contract changes every order digest, which
// is what prevents cross-network replay.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewEIP712Domain creates a domain bound to one network's settlement
// contract.
func NewEIP712Domain(chainID *big.Int, verifyingContract common.Address) *EIP712Domain {
	return &EIP712Domain{
		Name:              EIP712DomainName,
		Version:           EIP712DomainVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// Hash computes the EIP712 domain separator hash
func (d *EIP712Domain) Hash() common.Hash {
	nameHash := crypto.Keccak256Hash([]byte(d.Name))
	versionHash := crypto.Keccak256Hash([]byte(d.Version))

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	addressType, _ := abi.NewType("address", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: addressType}, // verifyingContract
	}

	encoded, err := arguments.Pack(
		EIP712DomainTypeHash,
		nameHash,
		versionHash,
		d.ChainID,
		d.VerifyingContract,
	)
	if err != nil {
		panic("failed to encode domain separator: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// OrderParams carries every signed field of an order in its canonical
// typed form.
type OrderParams struct {
	SellToken         common.Address
	BuyToken          common.Address
	Receiver          common.Address
	SellAmount        *big.Int
	BuyAmount         *big.Int
	ValidTo           uint32
	AppDataHash       common.Hash
	FeeAmount         *big.Int
	Kind              string
	PartiallyFillable bool
	SellTokenBalance  string
	BuyTokenBalance   string
}

// Hash computes the struct hash for the order
func (o *OrderParams) Hash() (common.Hash, error) {
	kindHash, err := kindHash(o.Kind)
	if err != nil {
		return common.Hash{}, err
	}
	sellBalanceHash, err := balanceHash(o.SellTokenBalance)
	if err != nil {
		return common.Hash{}, err
	}
	buyBalanceHash, err := balanceHash(o.BuyTokenBalance)
	if err != nil {
		return common.Hash{}, err
	}

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	uint32Type, _ := abi.NewType("uint32", "", nil)
	boolType, _ := abi.NewType("bool", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: addressType}, // sellToken
		{Type: addressType}, // buyToken
		{Type: addressType}, // receiver
		{Type: uint256Type}, // sellAmount
		{Type: uint256Type}, // buyAmount
		{Type: uint32Type},  // validTo
		{Type: bytes32Type}, // appData
		{Type: uint256Type}, // feeAmount
		{Type: bytes32Type}, // kind
		{Type: boolType},    // partiallyFillable
		{Type: bytes32Type}, // sellTokenBalance
		{Type: bytes32Type}, // buyTokenBalance
	}

	encoded, err := arguments.Pack(
		OrderTypeHash,
		o.SellToken,
		o.BuyToken,
		o.Receiver,
		orZero(o.SellAmount),
		orZero(o.BuyAmount),
		o.ValidTo,
		o.AppDataHash,
		orZero(o.FeeAmount),
		kindHash,
		o.PartiallyFillable,
		sellBalanceHash,
		buyBalanceHash,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode order struct: %w", err)
	}

	return crypto.Keccak256Hash(encoded), nil
}

// SigningDigest creates the final EIP712 hash to be signed:
// keccak256("\x19\x01" ++ domainSeparator ++ structHash)
func SigningDigest(domain *EIP712Domain, order *OrderParams) (common.Hash, error) {
	structHash, err := order.Hash()
	if err != nil {
		return common.Hash{}, err
	}
	domainSeparator := domain.Hash()

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator.Bytes()...)
	data = append(data, structHash.Bytes()...)

	return crypto.Keccak256Hash(data), nil
}

func kindHash(kind string) (common.Hash, error) {
	switch kind {
	case "sell":
		return KindSellHash, nil
	case "buy":
		return KindBuyHash, nil
	default:
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidOrderKind, kind)
	}
}

func balanceHash(balance string) (common.Hash, error) {
	switch balance {
	case "erc20":
		return BalanceERC20Hash, nil
	case "external":
		return BalanceExternalHash, nil
	case "internal":
		return BalanceInternalHash, nil
	default:
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidBalanceSource, balance)
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
