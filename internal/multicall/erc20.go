package multicall

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"autopoolScope/internal/model"
)

// BalanceOf reads token.balanceOf(owner) scaled by decimals.
func BalanceOf(name string, token, owner common.Address, decimals uint8) (Call, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return Call{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return NewCall(name, token, parsed, "balanceOf", Scaled(decimals), owner)
}

// TotalSupply reads token.totalSupply() scaled by decimals.
func TotalSupply(name string, token common.Address, decimals uint8) (Call, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return Call{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return NewCall(name, token, parsed, "totalSupply", Scaled(decimals))
}

// FetchTokenMeta loads decimals, symbol and name of token in one multicall.
// Tokens returning bytes32 symbols or names are handled as well.
func FetchTokenMeta(ctx context.Context, caller Caller, address common.Address, token common.Address, block uint64) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	calls := make([]Call, 0, 5)
	for _, spec := range []struct {
		name    string
		method  string
		bytes32 bool
		handler Handler
	}{
		{"decimals", "decimals", false, Uint},
		{"symbol", "symbol", false, Text},
		{"symbol32", "symbol", true, Text},
		{"name", "name", false, Text},
		{"name32", "name", true, Text},
	} {
		parsed := stringABI
		if spec.bytes32 {
			parsed = bytes32ABI
		}
		c, err := NewCall(spec.name, token, parsed, spec.method, spec.handler)
		if err != nil {
			return meta, err
		}
		calls = append(calls, c)
	}

	raws, err := Execute(ctx, caller, address, calls, block)
	if err != nil {
		return meta, err
	}
	values, err := Decode(calls, raws)
	if err != nil {
		return meta, err
	}

	decimals, ok := values[0].(uint64)
	if !ok || decimals > 255 {
		return meta, fmt.Errorf("token %s: decimals call failed", token.Hex())
	}
	meta.Decimals = uint8(decimals)
	meta.Symbol = firstText(values[1], values[2])
	meta.Name = firstText(values[3], values[4])
	return meta, nil
}

func firstText(values ...interface{}) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Load returns cached metadata or fetches it at block.
func (c *TokenMetaCache) Load(ctx context.Context, caller Caller, address, token common.Address, block uint64) (model.TokenMeta, error) {
	if meta, ok := c.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, caller, address, token, block)
	if err != nil {
		return meta, err
	}
	c.Set(token, meta)
	return meta, nil
}
