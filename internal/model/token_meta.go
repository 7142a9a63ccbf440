package model

import "strings"

// TokenMeta holds the ERC20 metadata of a vault or its asset.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// Label names the token in column prefixes: the lower-case symbol, or the
// lower-case address when the token has no usable symbol.
func (m TokenMeta) Label() string {
	symbol := strings.ToLower(strings.TrimSpace(m.Symbol))
	if symbol == "" || strings.ContainsAny(symbol, " \t") {
		return strings.ToLower(m.Address)
	}
	return symbol
}
