package batching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockBatchPaths(t *testing.T) {
	b := BlockBatch{Chain: "op", Min: 123456789, Max: 123466789}

	assert.Equal(t, uint64(10000), b.NumBlocks())
	assert.Equal(t, "000123456789", b.Filename())
	assert.Equal(t, "chain=op", b.DatasetPath())
	assert.Equal(t, "chain=op/dt=2024-10-01", b.DatePath("2024-10-01"))
	assert.Equal(t, "000123456789.parquet", b.ParquetFilename())
	assert.Equal(t, "chain=op/dt=2024-10-01/000123456789.parquet", b.ParquetPath("2024-10-01"))
	assert.Equal(t, "chain=op/000123456789.json", b.MarkerPath())
	assert.Equal(t, "op #123456789-123466789", b.String())
	assert.Equal(t, BlockRange{Min: 123456789, Max: 123466789}, b.Range())
	assert.True(t, b.Range().Contains(123466788))
	assert.False(t, b.Range().Contains(123466789))
}

func TestBlockBatchFilename(t *testing.T) {
	assert.Equal(t, "000000000000", BlockBatch{Chain: "c", Min: 0, Max: 1}.Filename())
	assert.Equal(t, "000000000042", BlockBatch{Chain: "c", Min: 42, Max: 43}.Filename())
}

func TestBlockBatchFilter(t *testing.T) {
	b := BlockBatch{Chain: "base", Min: 100, Max: 200}
	assert.Equal(t, "number >= 100 and number < 200", b.Filter(DefaultNumberColumn))
	assert.Equal(t, "block_number >= 100 and block_number < 200", b.Filter("block_number"))
}

func TestBlockBatchLogFields(t *testing.T) {
	fields := BlockBatch{Chain: "base", Min: 100, Max: 200}.LogFields()
	assert.Len(t, fields, 2)
	assert.Equal(t, "chain", fields[0].Key)
	assert.Equal(t, "base", fields[0].String)
	assert.Equal(t, "blocks", fields[1].Key)
	assert.Equal(t, "#100-200", fields[1].String)
}

func TestDateFromTimestamp(t *testing.T) {
	assert.Equal(t, "1970-01-01", DateFromTimestamp(0))
	assert.Equal(t, "2024-10-01", DateFromTimestamp(1727740800))
	assert.Equal(t, "2024-10-01", DateFromTimestamp(1727827199))
}
