package model

// TableRow is one row of a fetched table (decoded events or block state) as
// handed to sinks. Key disambiguates rows sharing a block, e.g. "hash:log_index".
type TableRow struct {
	ChainID   uint64                 `json:"chain_id"`
	Block     uint64                 `json:"block"`
	Timestamp uint64                 `json:"timestamp,omitempty"`
	Key       string                 `json:"key,omitempty"`
	Values    map[string]interface{} `json:"values"`
}
