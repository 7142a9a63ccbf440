package logs

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"autopoolScope/internal/model"
)

// NewLogRecord normalizes a raw log for the log sink.
func NewLogRecord(chainID uint64, chainName, event string, log types.Log, ingestedAt time.Time) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, strings.ToLower(topic.Hex()))
	}

	return model.LogRecord{
		ChainID:     chainID,
		Chain:       chainName,
		BlockNumber: log.BlockNumber,
		BlockHash:   strings.ToLower(log.BlockHash.Hex()),
		TxHash:      strings.ToLower(log.TxHash.Hex()),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Event:       event,
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}
}
