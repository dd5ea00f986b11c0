package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containerman17/op-batches/batch-ingestion/storage"
	"github.com/containerman17/op-batches/batching"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.PebbleStorage) {
	t.Helper()
	store, err := storage.NewPebbleStorage(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s := NewServer(batching.DefaultStore(), store, "op", nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Stop()
		srv.Close()
	})
	return srv, store
}

// saveTestBatch stores one {"n":N} document per block of batch.
func saveTestBatch(t *testing.T, store storage.Storage, batch batching.BlockBatch) {
	t.Helper()
	raw := make([][]byte, 0, batch.NumBlocks())
	for n := batch.Min; n < batch.Max; n++ {
		raw = append(raw, []byte(fmt.Sprintf(`{"n":%d}`, n)))
	}
	data, err := storage.EncodeBatch(batch, raw)
	require.NoError(t, err)
	require.NoError(t, store.SaveBatch(storage.Marker{
		Chain:     batch.Chain,
		Min:       batch.Min,
		Max:       batch.Max,
		Dt:        "2024-10-01",
		DataPath:  storage.DataPath(batch, "2024-10-01"),
		NumBlocks: batch.NumBlocks(),
		WrittenAt: time.Now().UTC(),
	}, data))
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestBatchesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var batches []BatchInfo
	status := getJSON(t, srv.URL+"/chains/op/batches?min=61995000&max=62005000&dt=2024-10-01", &batches)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, batches, 2)

	assert.Equal(t, uint64(61990000), batches[0].Min)
	assert.Equal(t, uint64(62000000), batches[0].Max)
	assert.Equal(t, "000062000000", batches[1].Filename)
	assert.Equal(t, "chain=op/dt=2024-10-01/000062000000.parquet", batches[1].ParquetPath)
	assert.Equal(t, "chain=op/000062000000.json", batches[1].MarkerPath)
	assert.Equal(t, "number >= 62000000 and number < 62005000", batches[1].Filter)
}

func TestBatchesEndpointErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/chains/nope/batches?min=0&max=10", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/chains/op/batches?min=10&max=0", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/chains/op/batches?min=x&max=0", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/chains/op/batches?min=0&max=1000000000", &body))
}

func TestBatchesEndpointStopsAtLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	start := time.Now()
	var body map[string]string
	status := getJSON(t, srv.URL+"/chains/base/batches?min=0&max=18446744073709551615", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "too many batches")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPolicyEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var policy map[string][]batching.Delimiter
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/policy", &policy))
	assert.Equal(t, batching.DefaultConfiguration(), policy)
}

func TestChainsAndDelimiters(t *testing.T) {
	srv, _ := newTestServer(t)

	var chains []string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/chains", &chains))
	assert.Contains(t, chains, "base")

	var delims []batching.Delimiter
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/chains/base/delimiters", &delims))
	assert.Len(t, delims, 4)
	assert.Equal(t, uint64(10000000), delims[1].BlockNumber)
}

func TestInfoAndMarkers(t *testing.T) {
	srv, store := newTestServer(t)
	saveTestBatch(t, store, batching.BlockBatch{Chain: "op", Min: 0, Max: 10000})

	var info map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/info", &info))
	assert.Equal(t, "op", info["chain"])
	assert.Equal(t, float64(10000), info["lastCompletedBlock"])

	var markers []storage.Marker
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/chains/op/markers", &markers))
	require.Len(t, markers, 1)
	assert.Equal(t, "chain=op/dt=2024-10-01/000000000000.jsonl.zst", markers[0].DataPath)
}

func TestWebSocketStreamsBatchesInOrder(t *testing.T) {
	srv, store := newTestServer(t)
	first := batching.BlockBatch{Chain: "op", Min: 0, Max: 10000}
	second := batching.BlockBatch{Chain: "op", Min: 10000, Max: 20000}
	saveTestBatch(t, store, first)
	saveTestBatch(t, store, second)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?chain=op&from=5"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	for _, want := range []batching.BlockBatch{first, second} {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		docs, err := storage.DecodeBatch(want, frame)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf(`{"n":%d}`, want.Min), string(docs[0]))
		assert.Equal(t, fmt.Sprintf(`{"n":%d}`, want.Max-1), string(docs[len(docs)-1]))
	}
}
