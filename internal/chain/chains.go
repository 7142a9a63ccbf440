package chain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Multicall3Address is deployed at the same address on every supported chain.
var Multicall3Address = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

// Profile holds the per-chain limits the fetchers depend on.
type Profile struct {
	Name    string
	ChainID uint64

	// AlchemyHost is the provider host, without scheme or key.
	AlchemyHost string

	// ChunkSize is the pre-chunk width for eth_getLogs scans. Zero means unbounded.
	ChunkSize uint64

	// RetryOn503 marks chains whose provider answers oversized log queries with HTTP 503.
	RetryOn503 bool

	// FinalizedLag is the distance from head after which a block is treated as final.
	FinalizedLag uint64
}

var profiles = map[string]Profile{
	"eth": {
		Name:         "eth",
		ChainID:      1,
		AlchemyHost:  "eth-mainnet.g.alchemy.com",
		ChunkSize:    0,
		FinalizedLag: 64,
	},
	"base": {
		Name:         "base",
		ChainID:      8453,
		AlchemyHost:  "base-mainnet.g.alchemy.com",
		ChunkSize:    100_000,
		FinalizedLag: 1_800,
	},
	"sonic": {
		Name:         "sonic",
		ChainID:      146,
		AlchemyHost:  "sonic-mainnet.g.alchemy.com",
		ChunkSize:    100_000,
		RetryOn503:   true,
		FinalizedLag: 1_000,
	},
	"arb": {
		Name:         "arb",
		ChainID:      42161,
		AlchemyHost:  "arb-mainnet.g.alchemy.com",
		ChunkSize:    500_000,
		FinalizedLag: 20_000,
	},
}

// Lookup returns the profile registered under name.
func Lookup(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown chain %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists the registered chain names in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AlchemyURL builds the HTTPS endpoint for the profile.
func (p Profile) AlchemyURL(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("alchemy key is required for chain %s", p.Name)
	}
	return fmt.Sprintf("https://%s/v2/%s", p.AlchemyHost, key), nil
}

// FinalizedBelow returns the highest block that is safe to cache given the current head.
func (p Profile) FinalizedBelow(head uint64) uint64 {
	if head <= p.FinalizedLag {
		return 0
	}
	return head - p.FinalizedLag
}

// IsFinalized reports whether block is far enough behind head to never change.
func (p Profile) IsFinalized(block, head uint64) bool {
	return head > p.FinalizedLag && block <= head-p.FinalizedLag
}
