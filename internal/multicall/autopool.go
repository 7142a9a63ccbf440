package multicall

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AutopoolCalls builds the standard per-vault state reads, with columns prefixed by label:
// total assets, total supply and NAV per share, all scaled by the vault's decimals.
func AutopoolCalls(label string, vault common.Address, decimals uint8) ([]Call, error) {
	parsed, err := AutopoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse autopool abi: %w", err)
	}

	oneShare := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	var calls []Call
	for _, spec := range []struct {
		column string
		method string
		args   []interface{}
	}{
		{"total_assets", "totalAssets", nil},
		{"total_supply", "totalSupply", nil},
		{"nav_per_share", "convertToAssets", []interface{}{oneShare}},
	} {
		c, err := NewCall(label+"_"+spec.column, vault, parsed, spec.method, Scaled(decimals), spec.args...)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}

	paused, err := NewCall(label+"_paused", vault, parsed, "paused", Bool)
	if err != nil {
		return nil, err
	}
	return append(calls, paused), nil
}
