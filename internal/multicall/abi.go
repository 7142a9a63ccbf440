package multicall

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const multicall3ABIJSON = `[
  {"inputs": [{"components": [
      {"internalType": "address", "name": "target", "type": "address"},
      {"internalType": "bool", "name": "allowFailure", "type": "bool"},
      {"internalType": "bytes", "name": "callData", "type": "bytes"}
    ], "internalType": "struct Multicall3.Call3[]", "name": "calls", "type": "tuple[]"}],
   "name": "aggregate3",
   "outputs": [{"components": [
      {"internalType": "bool", "name": "success", "type": "bool"},
      {"internalType": "bytes", "name": "returnData", "type": "bytes"}
    ], "internalType": "struct Multicall3.Result[]", "name": "returnData", "type": "tuple[]"}],
   "stateMutability": "payable", "type": "function"},
  {"inputs": [], "name": "getBlockNumber", "outputs": [{"internalType": "uint256", "name": "blockNumber", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getCurrentBlockTimestamp", "outputs": [{"internalType": "uint256", "name": "timestamp", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

// Some older tokens return symbol and name as bytes32.
const erc20Bytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

const autopoolABIJSON = `[
  {"inputs": [], "name": "totalAssets", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "uint256", "name": "shares", "type": "uint256"}], "name": "convertToAssets", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "asset", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "paused", "outputs": [{"type": "bool"}], "stateMutability": "view", "type": "function"}
]`

type lazyABI struct {
	once   sync.Once
	json   string
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	multicall3ABI   = &lazyABI{json: multicall3ABIJSON}
	erc20ABI        = &lazyABI{json: erc20ABIJSON}
	erc20Bytes32ABI = &lazyABI{json: erc20Bytes32ABIJSON}
	autopoolABI     = &lazyABI{json: autopoolABIJSON}
)

// Multicall3ABI returns the parsed Multicall3 ABI subset used here.
func Multicall3ABI() (abi.ABI, error) { return multicall3ABI.get() }

// ERC20ABI returns the parsed ERC20 read ABI.
func ERC20ABI() (abi.ABI, error) { return erc20ABI.get() }

// AutopoolABI returns the parsed Autopool vault read ABI.
func AutopoolABI() (abi.ABI, error) { return autopoolABI.get() }
