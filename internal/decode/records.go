package decode

import (
	"fmt"

	"autopoolScope/internal/model"
)

// Records converts the table into sink rows keyed by transaction hash and log index.
func (t *Table) Records(chainID uint64) []model.TableRow {
	out := make([]model.TableRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		block, _, logIndex := SortKey(row)
		values := make(map[string]interface{}, len(row))
		for k, v := range row {
			values[k] = v
		}
		out = append(out, model.TableRow{
			ChainID: chainID,
			Block:   block,
			Key:     fmt.Sprintf("%v:%d", row[ColumnHash], logIndex),
			Values:  values,
		})
	}
	return out
}
