package decode

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// vaultABIJSON holds the ERC4626/ERC20 events emitted by Autopool vaults.
const vaultABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "assets", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "shares", "type": "uint256"}
    ],
    "name": "Deposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "receiver", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "assets", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "shares", "type": "uint256"}
    ],
    "name": "Withdraw",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "fees", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "feeSink", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "mintedShares", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "profit", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "totalAssets", "type": "uint256"}
    ],
    "name": "FeeCollected",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address[]", "name": "destinations", "type": "address[]"},
      {"indexed": false, "internalType": "uint256[]", "name": "weights", "type": "uint256[]"}
    ],
    "name": "DestinationWeightsSet",
    "type": "event"
  }
]`

var (
	vaultABI     abi.ABI
	vaultABIOnce sync.Once
	vaultABIErr  error
)

// VaultABI returns the parsed built-in vault ABI.
func VaultABI() (abi.ABI, error) {
	vaultABIOnce.Do(func() {
		vaultABI, vaultABIErr = abi.JSON(strings.NewReader(vaultABIJSON))
	})
	return vaultABI, vaultABIErr
}

// LoadEvent reads an ABI JSON document and returns the named event.
func LoadEvent(r io.Reader, name string) (abi.Event, error) {
	parsed, err := abi.JSON(r)
	if err != nil {
		return abi.Event{}, fmt.Errorf("parse abi: %w", err)
	}
	return lookupEvent(parsed, name)
}

// ResolveEvent loads name from the ABI file at path, or from the built-in vault
// ABI when path is empty.
func ResolveEvent(path, name string) (abi.Event, error) {
	if path == "" {
		parsed, err := VaultABI()
		if err != nil {
			return abi.Event{}, fmt.Errorf("parse vault abi: %w", err)
		}
		return lookupEvent(parsed, name)
	}

	file, err := os.Open(path)
	if err != nil {
		return abi.Event{}, fmt.Errorf("open abi: %w", err)
	}
	defer file.Close()

	return LoadEvent(file, name)
}

func lookupEvent(parsed abi.ABI, name string) (abi.Event, error) {
	event, ok := parsed.Events[name]
	if !ok {
		return abi.Event{}, fmt.Errorf("event %q not found in abi", name)
	}
	return event, nil
}
