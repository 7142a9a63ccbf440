// Package multicall batches read-only contract calls through Multicall3.
package multicall

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Caller performs eth_call at a given block.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RawResult is one aggregate3 result entry, kept undecoded so that it can be cached.
type RawResult struct {
	Success    bool          `json:"success"`
	ReturnData hexutil.Bytes `json:"return_data"`
}

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type result3 struct {
	Success    bool
	ReturnData []byte
}

// Pack encodes calls as an aggregate3 invocation. Every call allows failure.
func Pack(calls []Call) ([]byte, error) {
	parsed, err := Multicall3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall3 abi: %w", err)
	}
	encoded := make([]call3, 0, len(calls))
	for _, c := range calls {
		data, err := c.CallData()
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, call3{Target: c.Target, AllowFailure: true, CallData: data})
	}
	return parsed.Pack("aggregate3", encoded)
}

// Unpack decodes aggregate3 return data.
func Unpack(data []byte) ([]RawResult, error) {
	parsed, err := Multicall3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall3 abi: %w", err)
	}
	out, err := parsed.Unpack("aggregate3", data)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("aggregate3 returned %d values", len(out))
	}
	results := *abi.ConvertType(out[0], new([]result3)).(*[]result3)

	raws := make([]RawResult, len(results))
	for i, r := range results {
		raws[i] = RawResult{Success: r.Success, ReturnData: r.ReturnData}
	}
	return raws, nil
}

// Execute issues calls as one aggregate3 eth_call against address at block.
func Execute(ctx context.Context, caller Caller, address common.Address, calls []Call, block uint64) ([]RawResult, error) {
	data, err := Pack(calls)
	if err != nil {
		return nil, err
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &address, Data: data}, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, fmt.Errorf("aggregate3 at block %d: %w", block, err)
	}
	raws, err := Unpack(resp)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", block, err)
	}
	if len(raws) != len(calls) {
		return nil, fmt.Errorf("block %d: aggregate3 returned %d results for %d calls", block, len(raws), len(calls))
	}
	return raws, nil
}

// Decode applies each call's handler to its raw result.
func Decode(calls []Call, raws []RawResult) ([]interface{}, error) {
	if len(raws) != len(calls) {
		return nil, fmt.Errorf("got %d results for %d calls", len(raws), len(calls))
	}
	values := make([]interface{}, len(calls))
	for i, c := range calls {
		values[i] = c.Decode(raws[i])
	}
	return values, nil
}

// Key identifies the response of calls at block on a chain. Handlers are not
// part of the key: cached values are raw results.
func Key(chainID uint64, address common.Address, calls []Call, block uint64) ([]byte, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], chainID)
	parts := [][]byte{buf[:], address.Bytes()}
	for _, c := range calls {
		data, err := c.CallData()
		if err != nil {
			return nil, err
		}
		parts = append(parts, c.Target.Bytes(), data, []byte(c.Method.Sig))
	}
	digest := crypto.Keccak256(parts...)

	key := make([]byte, 0, 8+len(digest))
	key = binary.BigEndian.AppendUint64(key, block)
	return append(key, digest...), nil
}

// BlockNumberCall reads the executing block number from Multicall3 itself.
func BlockNumberCall(address common.Address) (Call, error) {
	parsed, err := Multicall3ABI()
	if err != nil {
		return Call{}, err
	}
	return NewCall("block_number", address, parsed, "getBlockNumber", Uint)
}

// BlockTimestampCall reads the executing block timestamp from Multicall3 itself.
func BlockTimestampCall(address common.Address) (Call, error) {
	parsed, err := Multicall3ABI()
	if err != nil {
		return Call{}, err
	}
	return NewCall("timestamp", address, parsed, "getCurrentBlockTimestamp", Uint)
}
