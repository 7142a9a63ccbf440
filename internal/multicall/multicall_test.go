package multicall_test

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/multicall"
	"autopoolScope/internal/multicall/multicalltest"
)

var (
	token = common.HexToAddress("0x7777777777777777777777777777777777777777")
	vault = common.HexToAddress("0x8888888888888888888888888888888888888888")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestExecuteToleratesPartialFailure(t *testing.T) {
	fake := multicalltest.NewChain(chain.Multicall3Address, 1000)
	holders := make([]common.Address, 10)
	for i := range holders {
		holders[i] = common.BigToAddress(big.NewInt(int64(i + 1)))
	}
	fake.Respond = func(block uint64, target common.Address, callData []byte) ([]byte, bool) {
		// The last holder's call reverts.
		if bytes.HasSuffix(callData, common.LeftPadBytes(holders[9].Bytes(), 32)) {
			return nil, false
		}
		return multicalltest.Uint256(ether(int64(callData[len(callData)-1]))), true
	}

	calls := make([]multicall.Call, 0, len(holders))
	for i, holder := range holders {
		c, err := multicall.BalanceOf("holder_"+string(rune('a'+i)), token, holder, 18)
		require.NoError(t, err)
		calls = append(calls, c)
	}

	raws, err := multicall.Execute(context.Background(), fake, chain.Multicall3Address, calls, 900)
	require.NoError(t, err)
	values, err := multicall.Decode(calls, raws)
	require.NoError(t, err)

	require.Len(t, values, 10)
	for i := 0; i < 9; i++ {
		require.Equal(t, float64(i+1), values[i], "holder %d", i)
	}
	require.Nil(t, values[9])
	require.Equal(t, 1, fake.Calls())
}

func TestBlockCallsReadExecutingBlock(t *testing.T) {
	fake := multicalltest.NewChain(chain.Multicall3Address, 1000)

	blockCall, err := multicall.BlockNumberCall(chain.Multicall3Address)
	require.NoError(t, err)
	tsCall, err := multicall.BlockTimestampCall(chain.Multicall3Address)
	require.NoError(t, err)

	calls := []multicall.Call{blockCall, tsCall}
	raws, err := multicall.Execute(context.Background(), fake, chain.Multicall3Address, calls, 42)
	require.NoError(t, err)
	values, err := multicall.Decode(calls, raws)
	require.NoError(t, err)
	require.Equal(t, uint64(42), values[0])
	require.Equal(t, uint64(1_700_000_000+42*12), values[1])
}

func TestKeyDependsOnCallsChainAndBlock(t *testing.T) {
	a, err := multicall.TotalSupply("supply", token, 18)
	require.NoError(t, err)
	b, err := multicall.TotalSupply("supply", vault, 18)
	require.NoError(t, err)
	scaled6, err := multicall.TotalSupply("other_name", token, 6)
	require.NoError(t, err)

	base, err := multicall.Key(1, chain.Multicall3Address, []multicall.Call{a}, 100)
	require.NoError(t, err)

	same, err := multicall.Key(1, chain.Multicall3Address, []multicall.Call{scaled6}, 100)
	require.NoError(t, err)
	require.Equal(t, base, same, "names and handlers do not change the request")

	for _, other := range []struct {
		chainID uint64
		calls   []multicall.Call
		block   uint64
	}{
		{8453, []multicall.Call{a}, 100},
		{1, []multicall.Call{b}, 100},
		{1, []multicall.Call{a}, 101},
		{1, []multicall.Call{a, a}, 100},
	} {
		key, err := multicall.Key(other.chainID, chain.Multicall3Address, other.calls, other.block)
		require.NoError(t, err)
		require.NotEqual(t, base, key)
	}
}

func TestFetchTokenMetaFallsBackToBytes32(t *testing.T) {
	erc20, err := multicall.ERC20ABI()
	require.NoError(t, err)

	fake := multicalltest.NewChain(chain.Multicall3Address, 1000)
	fake.Respond = func(block uint64, target common.Address, callData []byte) ([]byte, bool) {
		switch {
		case bytes.Equal(callData[:4], erc20.Methods["decimals"].ID):
			return multicalltest.Uint256(big.NewInt(6)), true
		case bytes.Equal(callData[:4], erc20.Methods["name"].ID):
			out, _ := erc20.Methods["name"].Outputs.Pack("Maker Token")
			return out, true
		case bytes.Equal(callData[:4], erc20.Methods["symbol"].ID):
			// A bytes32 symbol: the string decoding fails, the bytes32 one succeeds.
			var symbol [32]byte
			copy(symbol[:], "MKR")
			return symbol[:], true
		}
		return nil, false
	}

	meta, err := multicall.FetchTokenMeta(context.Background(), fake, chain.Multicall3Address, token, 900)
	require.NoError(t, err)
	require.Equal(t, uint8(6), meta.Decimals)
	require.Equal(t, "MKR", meta.Symbol)
	require.Equal(t, "Maker Token", meta.Name)

	cache := multicall.NewTokenMetaCache()
	_, err = cache.Load(context.Background(), fake, chain.Multicall3Address, token, 900)
	require.NoError(t, err)
	_, err = cache.Load(context.Background(), fake, chain.Multicall3Address, token, 900)
	require.NoError(t, err)
	require.Equal(t, 2, fake.Calls())
}

func TestAutopoolCalls(t *testing.T) {
	calls, err := multicall.AutopoolCalls("baseusd", vault, 6)
	require.NoError(t, err)
	require.Len(t, calls, 4)
	require.Equal(t, "baseusd_nav_per_share", calls[2].Name)
	require.Equal(t, []interface{}{big.NewInt(1_000_000)}, calls[2].Args)

	raw := multicall.RawResult{Success: true, ReturnData: multicalltest.Uint256(big.NewInt(2_500_000))}
	require.Equal(t, 2.5, calls[0].Decode(raw))
	require.Nil(t, calls[0].Decode(multicall.RawResult{Success: false}))
}

func TestHandlers(t *testing.T) {
	ok := func(v ...interface{}) multicall.Result { return multicall.Result{OK: true, Values: v} }

	require.Equal(t, "1.500000", multicall.ScaledString(6)(ok(big.NewInt(1_500_000))))
	require.Equal(t, "-0.05", multicall.FormatAmount(big.NewInt(-5), 2))
	require.Equal(t, uint64(7), multicall.Uint(ok(uint8(7))))
	require.Nil(t, multicall.Uint(ok(new(big.Int).Lsh(big.NewInt(1), 70))))
	require.Equal(t, token.Hex(), multicall.Address(ok(token)))
	require.Equal(t, true, multicall.Bool(ok(true)))
	require.Nil(t, multicall.Value(multicall.Result{}))
	require.Equal(t, []interface{}{uint8(1), "x"}, multicall.Value(ok(uint8(1), "x")))
}
