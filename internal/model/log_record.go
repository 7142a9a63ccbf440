package model

// LogRecord is the normalized representation of a chain log for storage.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	Chain       string   `json:"chain"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Event       string   `json:"event,omitempty"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	IngestedAt  string   `json:"ingested_at"`
}
