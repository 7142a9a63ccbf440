package decode

import (
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var bigIntType = reflect.TypeOf((*big.Int)(nil))

// normalizeValue maps ABI-decoded Go values onto table-friendly scalars:
// addresses to checksummed hex, hashes and byte strings to lower-case hex.
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case common.Address:
		return v.Hex()
	case common.Hash:
		return strings.ToLower(v.Hex())
	case []byte:
		return hexutil.Encode(v)
	case *big.Int:
		if v == nil {
			return nil
		}
		return new(big.Int).Set(v)
	case string, bool,
		uint8, uint16, uint32, uint64,
		int8, int16, int32, int64:
		return v
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		buf := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(buf), rv)
		return hexutil.Encode(buf)
	}
	return value
}

// listItems returns the elements of an ABI array or slice value.
func listItems(value interface{}) []interface{} {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{value}
	}
	items := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i)
		if item.Type() == bigIntType && item.IsNil() {
			items[i] = nil
			continue
		}
		items[i] = item.Interface()
	}
	return items
}
