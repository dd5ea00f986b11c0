package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containerman17/op-batches/batching"
)

func openTestStore(t *testing.T) *PebbleStorage {
	t.Helper()
	s, err := NewPebbleStorage(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testMarker(chain string, min, max uint64) Marker {
	batch := batching.BlockBatch{Chain: chain, Min: min, Max: max}
	return Marker{
		Chain:     chain,
		Min:       min,
		Max:       max,
		Dt:        "2024-10-01",
		DataPath:  DataPath(batch, "2024-10-01"),
		NumBlocks: max - min,
		RunID:     "run",
		WrittenAt: time.Unix(1727740800, 0).UTC(),
	}
}

func TestCodecRoundTrip(t *testing.T) {
	batch := batching.BlockBatch{Chain: "op", Min: 1, Max: 3}
	blocks := [][]byte{[]byte(`{"number":"0x1"}`), []byte(`{"number":"0x2"}`)}

	data, err := EncodeBatch(batch, blocks)
	require.NoError(t, err)

	decoded, err := DecodeBatch(batch, data)
	require.NoError(t, err)
	assert.Equal(t, blocks, decoded)
}

func TestEncodeBatchRejectsNewlines(t *testing.T) {
	_, err := EncodeBatch(batching.BlockBatch{Chain: "op", Min: 0, Max: 1}, [][]byte{[]byte("{\n}")})
	assert.Error(t, err)
}

func TestCodecChecksDocumentCount(t *testing.T) {
	batch := batching.BlockBatch{Chain: "op", Min: 10, Max: 13}

	_, err := EncodeBatch(batch, [][]byte{[]byte(`{}`), []byte(`{}`)})
	assert.ErrorContains(t, err, "expected 3 block documents, got 2")

	data, err := EncodeBatch(batch, [][]byte{[]byte(`{}`), []byte(`{}`), []byte(`{}`)})
	require.NoError(t, err)
	_, err = DecodeBatch(batching.BlockBatch{Chain: "op", Min: 10, Max: 15}, data)
	assert.ErrorContains(t, err, "payload holds 3 documents, expected 5")
}

func TestDataPath(t *testing.T) {
	batch := batching.BlockBatch{Chain: "op", Min: 42, Max: 100}
	assert.Equal(t, "chain=op/dt=2024-10-01/000000000042.jsonl.zst", DataPath(batch, "2024-10-01"))
}

func TestSaveBatchWritesDataAndMarker(t *testing.T) {
	s := openTestStore(t)
	m := testMarker("op", 100, 200)

	_, found, err := s.GetMarker(m.Batch())
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SaveBatch(m, []byte("payload")))

	got, found, err := s.GetMarker(m.Batch())
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, m.WrittenAt.Equal(got.WrittenAt))
	got.WrittenAt = m.WrittenAt
	assert.Equal(t, m, got)

	data, err := s.GetBatchData(m.DataPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = s.GetBatchData("chain=op/dt=2024-10-01/nope.jsonl.zst")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveBatchRequiresDataPath(t *testing.T) {
	s := openTestStore(t)
	m := testMarker("op", 0, 100)
	m.DataPath = ""
	assert.Error(t, s.SaveBatch(m, nil))
}

func TestMarkersOrderedPerChain(t *testing.T) {
	s := openTestStore(t)

	for _, min := range []uint64{900, 100, 10000, 500} {
		require.NoError(t, s.SaveBatch(testMarker("op", min, min+100), []byte("x")))
	}
	require.NoError(t, s.SaveBatch(testMarker("optimism", 0, 100), []byte("x")))

	markers, err := s.Markers("op")
	require.NoError(t, err)
	require.Len(t, markers, 4)
	for i, want := range []uint64{100, 500, 900, 10000} {
		assert.Equal(t, want, markers[i].Min, fmt.Sprintf("marker %d", i))
	}

	latest, found, err := s.LatestMarker("op")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(10000), latest.Min)

	_, found, err = s.LatestMarker("base")
	require.NoError(t, err)
	assert.False(t, found)

	empty, err := s.Markers("base")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpperBound(t *testing.T) {
	assert.Equal(t, []byte("marker:chain=op0"), upperBound([]byte("marker:chain=op/")))
	assert.Equal(t, []byte("b"), upperBound([]byte{'a', 0xff}))
}
