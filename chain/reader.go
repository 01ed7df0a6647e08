package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Reader is the narrow chain-read surface the client and the oracles
// depend on. Implementations own retry and timeout policy; callers get
// errors back unchanged.
type Reader interface {
	// CallContractFunction performs an eth_call against a contract
	// method and returns the decoded outputs.
	CallContractFunction(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error)

	// GetDecimals returns a token's decimal count, cached per address.
	GetDecimals(ctx context.Context, token common.Address) (int, error)

	// GetUnderlyingToken resolves a wrapper super token to the token it
	// wraps.
	GetUnderlyingToken(ctx context.Context, token common.Address) (common.Address, error)
}

// RPCReader implements Reader against a JSON-RPC endpoint. One reader
// is bound to one network, so its decimals cache is network-scoped.
type RPCReader struct {
	client *ethclient.Client

	mu            sync.RWMutex
	decimalsCache map[common.Address]int
}

var _ Reader = (*RPCReader)(nil)

// NewRPCReader connects to a JSON-RPC endpoint
func NewRPCReader(rpcURL string) (*RPCReader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	return &RPCReader{
		client:        client,
		decimalsCache: make(map[common.Address]int),
	}, nil
}

// CallContractFunction performs an eth_call and decodes the outputs
func (r *RPCReader) CallContractFunction(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}

	values, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}

	return values, nil
}

// GetDecimals returns the token's decimals() value, cached per address.
// Token decimals are immutable on chain, so the cache never expires.
func (r *RPCReader) GetDecimals(ctx context.Context, token common.Address) (int, error) {
	r.mu.RLock()
	if decimals, ok := r.decimalsCache[token]; ok {
		r.mu.RUnlock()
		return decimals, nil
	}
	r.mu.RUnlock()

	values, err := r.CallContractFunction(ctx, token, GetERC20ABI(), "decimals")
	if err != nil {
		return 0, fmt.Errorf("decimals call for %s: %w", token.Hex(), err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decimals call for %s: unexpected output arity %d", token.Hex(), len(values))
	}

	decimalsU8, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals call for %s: unexpected output type %T", token.Hex(), values[0])
	}
	decimals := int(decimalsU8)

	r.mu.Lock()
	r.decimalsCache[token] = decimals
	r.mu.Unlock()

	return decimals, nil
}

// GetUnderlyingToken resolves a wrapper super token to its underlying
func (r *RPCReader) GetUnderlyingToken(ctx context.Context, token common.Address) (common.Address, error) {
	values, err := r.CallContractFunction(ctx, token, GetSuperTokenABI(), "getUnderlyingToken")
	if err != nil {
		return common.Address{}, err
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("getUnderlyingToken for %s: unexpected output arity %d", token.Hex(), len(values))
	}

	underlying, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getUnderlyingToken for %s: unexpected output type %T", token.Hex(), values[0])
	}

	return underlying, nil
}

// Close closes the RPC connection
func (r *RPCReader) Close() {
	if r.client != nil {
		r.client.Close()
	}
}
