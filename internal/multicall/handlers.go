package multicall

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Value returns the single output of a call, all outputs when there are
// several, or nil on failure.
func Value(r Result) interface{} {
	if !r.OK || len(r.Values) == 0 {
		return nil
	}
	if len(r.Values) == 1 {
		return r.Values[0]
	}
	return r.Values
}

// BigInt returns the first output as *big.Int.
func BigInt(r Result) interface{} {
	if v := firstBigInt(r); v != nil {
		return v
	}
	return nil
}

// Uint returns the first output as uint64, or nil when it does not fit.
func Uint(r Result) interface{} {
	v := firstBigInt(r)
	if v == nil || !v.IsUint64() {
		return nil
	}
	return v.Uint64()
}

func Bool(r Result) interface{} {
	if !r.OK || len(r.Values) == 0 {
		return nil
	}
	b, ok := r.Values[0].(bool)
	if !ok {
		return nil
	}
	return b
}

// Address returns the first output as a checksummed hex string.
func Address(r Result) interface{} {
	if !r.OK || len(r.Values) == 0 {
		return nil
	}
	switch v := r.Values[0].(type) {
	case common.Address:
		return v.Hex()
	case *common.Address:
		return v.Hex()
	}
	return nil
}

// Text returns a string output, accepting bytes32-encoded strings too.
func Text(r Result) interface{} {
	if !r.OK || len(r.Values) == 0 {
		return nil
	}
	switch v := r.Values[0].(type) {
	case string:
		return v
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00"))
	case []byte:
		return string(bytes.TrimRight(v, "\x00"))
	}
	return nil
}

// Scaled divides the first integer output by 10^decimals and returns a float64.
func Scaled(decimals uint8) Handler {
	return func(r Result) interface{} {
		v := firstBigInt(r)
		if v == nil {
			return nil
		}
		f, _ := scaleRat(v, decimals).Float64()
		return f
	}
}

// ScaledString is Scaled without float rounding, formatted with exactly decimals digits.
func ScaledString(decimals uint8) Handler {
	return func(r Result) interface{} {
		v := firstBigInt(r)
		if v == nil {
			return nil
		}
		return FormatAmount(v, decimals)
	}
}

// FormatAmount renders value/10^decimals as a decimal string.
func FormatAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	text := new(big.Rat).Abs(scaleRat(value, decimals)).FloatString(int(decimals))
	if value.Sign() < 0 {
		return "-" + text
	}
	return text
}

func scaleRat(value *big.Int, decimals uint8) *big.Rat {
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(value, denom)
}

func firstBigInt(r Result) *big.Int {
	if !r.OK || len(r.Values) == 0 {
		return nil
	}
	switch v := r.Values[0].(type) {
	case *big.Int:
		if v == nil {
			return nil
		}
		return new(big.Int).Set(v)
	case uint8:
		return new(big.Int).SetUint64(uint64(v))
	case uint16:
		return new(big.Int).SetUint64(uint64(v))
	case uint32:
		return new(big.Int).SetUint64(uint64(v))
	case uint64:
		return new(big.Int).SetUint64(v)
	case int8:
		return big.NewInt(int64(v))
	case int16:
		return big.NewInt(int64(v))
	case int32:
		return big.NewInt(int64(v))
	case int64:
		return big.NewInt(v)
	}
	return nil
}
