package multicall

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Result is the outcome of one call inside a multicall. OK is false when the
// call reverted or its return data could not be decoded.
type Result struct {
	OK     bool
	Values []interface{}
}

// Handler turns a Result into a cleaned value. Failed results map to nil.
type Handler func(Result) interface{}

// Call is a single read-only contract call. Name labels the output column.
type Call struct {
	Name    string
	Target  common.Address
	Method  abi.Method
	Args    []interface{}
	Handler Handler
}

// NewCall looks up method in parsed and builds a call to target.
func NewCall(name string, target common.Address, parsed abi.ABI, method string, handler Handler, args ...interface{}) (Call, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return Call{}, fmt.Errorf("call %s: method %s not in abi", name, method)
	}
	return Call{
		Name:    name,
		Target:  target,
		Method:  m,
		Args:    args,
		Handler: handler,
	}, nil
}

// CallData returns the selector followed by the ABI-encoded arguments.
func (c Call) CallData() ([]byte, error) {
	packed, err := c.Method.Inputs.Pack(c.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s.%s: %w", c.Name, c.Method.Name, err)
	}
	return append(append([]byte{}, c.Method.ID...), packed...), nil
}

// Decode unpacks raw return data and applies the handler.
func (c Call) Decode(raw RawResult) interface{} {
	result := Result{}
	if raw.Success {
		values, err := c.Method.Outputs.Unpack(raw.ReturnData)
		if err == nil {
			result = Result{OK: true, Values: values}
		}
	}

	handler := c.Handler
	if handler == nil {
		handler = Value
	}
	return handler(result)
}
