package batching

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultNumberColumn is the block number column of the raw block tables.
const DefaultNumberColumn = "number"

// BlockBatch is one boundary-aligned batch of blocks, [Min, Max).
//
// Batches come out of Split and are used as-is to build storage paths and row
// filters. Callers should not construct or modify them.
type BlockBatch struct {
	Chain string `json:"chain"`
	Min   uint64 `json:"min"` // inclusive
	Max   uint64 `json:"max"` // exclusive
}

// NumBlocks returns the number of blocks in the batch.
func (b BlockBatch) NumBlocks() uint64 {
	return b.Max - b.Min
}

func (b BlockBatch) Range() BlockRange {
	return BlockRange{Min: b.Min, Max: b.Max}
}

func (b BlockBatch) String() string {
	return fmt.Sprintf("%s #%d-%d", b.Chain, b.Min, b.Max)
}

// LogFields returns the fields that identify the batch in log lines.
func (b BlockBatch) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("chain", b.Chain),
		zap.String("blocks", fmt.Sprintf("#%d-%d", b.Min, b.Max)),
	}
}

// Filter returns a SQL predicate selecting the batch's rows by column.
func (b BlockBatch) Filter(column string) string {
	return fmt.Sprintf("%s >= %d and %s < %d", column, b.Min, column, b.Max)
}

// Filename is the batch's first block, zero padded to 12 digits.
func (b BlockBatch) Filename() string {
	return fmt.Sprintf("%012d", b.Min)
}

func (b BlockBatch) DatasetPath() string {
	return fmt.Sprintf("chain=%s", b.Chain)
}

func (b BlockBatch) DatePath(dt string) string {
	return fmt.Sprintf("chain=%s/dt=%s", b.Chain, dt)
}

func (b BlockBatch) ParquetFilename() string {
	return b.Filename() + ".parquet"
}

// ParquetPath is the object path of the batch's columnar file in the dt partition.
func (b BlockBatch) ParquetPath(dt string) string {
	return fmt.Sprintf("chain=%s/dt=%s/%s.parquet", b.Chain, dt, b.Filename())
}

// MarkerPath is where the batch's completion marker lives. It is not date
// partitioned so it can be found before the batch's date is known.
func (b BlockBatch) MarkerPath() string {
	return fmt.Sprintf("chain=%s/%s.json", b.Chain, b.Filename())
}

// DateFromTimestamp formats a unix timestamp as a dt partition value.
func DateFromTimestamp(unix uint64) string {
	return time.Unix(int64(unix), 0).UTC().Format(time.DateOnly)
}
