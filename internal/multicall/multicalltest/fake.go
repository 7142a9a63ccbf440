// Package multicalltest provides an in-process Multicall3 for tests.
package multicalltest

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"autopoolScope/internal/multicall"
)

// Responder answers one inner call. ok=false makes the call revert.
type Responder func(block uint64, target common.Address, callData []byte) (returnData []byte, ok bool)

// Chain executes aggregate3 calls in memory.
type Chain struct {
	Address   common.Address
	Latest    uint64
	Timestamp func(block uint64) uint64
	Respond   Responder
	// Fail, when set, can reject a whole multicall before execution.
	Fail func(block uint64, attempt int) error

	mu       sync.Mutex
	calls    int
	attempts map[uint64]int
	inFlight int
	peak     int
}

func NewChain(address common.Address, latest uint64) *Chain {
	return &Chain{
		Address:   address,
		Latest:    latest,
		Timestamp: func(block uint64) uint64 { return 1_700_000_000 + block*12 },
		attempts:  make(map[uint64]int),
	}
}

// Calls returns how many eth_call requests were served.
func (c *Chain) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Peak returns the highest number of concurrent requests observed.
func (c *Chain) Peak() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak
}

func (c *Chain) LatestBlockNumber(context.Context) (uint64, error) {
	return c.Latest, nil
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

func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	block := blockNumber.Uint64()

	c.mu.Lock()
	c.calls++
	c.attempts[block]++
	attempt := c.attempts[block]
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Fail != nil {
		if err := c.Fail(block, attempt); err != nil {
			return nil, err
		}
	}
	if msg.To == nil || *msg.To != c.Address {
		return nil, fmt.Errorf("unexpected target %v", msg.To)
	}

	parsed, err := multicall.Multicall3ABI()
	if err != nil {
		return nil, err
	}
	method := parsed.Methods["aggregate3"]
	if len(msg.Data) < 4 || !bytes.Equal(msg.Data[:4], method.ID) {
		return nil, fmt.Errorf("not an aggregate3 call")
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(args[0], new([]call3)).(*[]call3)

	results := make([]result3, len(calls))
	for i, inner := range calls {
		results[i] = c.execute(parsed, block, inner)
	}
	return method.Outputs.Pack(results)
}

func (c *Chain) execute(parsed abi.ABI, block uint64, inner call3) result3 {
	if inner.Target == c.Address && len(inner.CallData) >= 4 {
		for _, name := range []string{"getBlockNumber", "getCurrentBlockTimestamp"} {
			m := parsed.Methods[name]
			if !bytes.Equal(inner.CallData[:4], m.ID) {
				continue
			}
			value := block
			if name == "getCurrentBlockTimestamp" {
				value = c.Timestamp(block)
			}
			out, err := m.Outputs.Pack(new(big.Int).SetUint64(value))
			if err != nil {
				return result3{}
			}
			return result3{Success: true, ReturnData: out}
		}
	}
	if c.Respond == nil {
		return result3{}
	}
	data, ok := c.Respond(block, inner.Target, inner.CallData)
	return result3{Success: ok, ReturnData: data}
}

// Uint256 ABI-encodes v as a single uint256 return value.
func Uint256(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}
