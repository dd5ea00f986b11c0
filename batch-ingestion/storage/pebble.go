package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble/v2"
	"go.uber.org/zap"

	"github.com/containerman17/op-batches/batching"
)

const (
	dataKeyPrefix   = "data:"   // data:{chain=C/dt=D/filename}.jsonl.zst
	markerKeyPrefix = "marker:" // marker:{chain=C/filename}.json
)

// ErrNotFound is returned when a payload does not exist.
var ErrNotFound = errors.New("not found")

// PebbleStorage implements Storage using a standalone pebble database
type PebbleStorage struct {
	db *pebble.DB
}

// Ensure PebbleStorage implements Storage interface
var _ Storage = (*PebbleStorage)(nil)

// pebbleLogger forwards pebble's logs to zap, dropping info chatter
type pebbleLogger struct {
	s *zap.SugaredLogger
}

func (pebbleLogger) Infof(format string, args ...interface{}) {}
func (l pebbleLogger) Errorf(format string, args ...interface{}) {
	l.s.Errorf("[pebble] "+format, args...)
}
func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.s.Fatalf("[pebble] "+format, args...)
}

func NewPebbleStorage(path string, logger *zap.Logger) (*PebbleStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := pebble.Open(path, &pebble.Options{
		Logger: pebbleLogger{s: logger.Sugar()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &PebbleStorage{db: db}, nil
}

func (s *PebbleStorage) Close() error {
	return s.db.Close()
}

// DataPath is where the payload of batch for partition dt is stored.
func DataPath(batch batching.BlockBatch, dt string) string {
	return fmt.Sprintf("%s/%s.jsonl.zst", batch.DatePath(dt), batch.Filename())
}

func dataKey(dataPath string) []byte {
	return []byte(dataKeyPrefix + dataPath)
}

func markerKey(batch batching.BlockBatch) []byte {
	return []byte(markerKeyPrefix + batch.MarkerPath())
}

func chainMarkerPrefix(chain string) []byte {
	return []byte(markerKeyPrefix + batching.BlockBatch{Chain: chain}.DatasetPath() + "/")
}

// upperBound returns the smallest key greater than every key starting with prefix
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *PebbleStorage) get(key []byte) ([]byte, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	result := make([]byte, len(data))
	copy(result, data)
	closer.Close()
	return result, nil
}

// SaveBatch stores the payload and the marker in one synced commit
func (s *PebbleStorage) SaveBatch(m Marker, data []byte) error {
	if m.DataPath == "" {
		return fmt.Errorf("marker for %s has no data path", m.Batch())
	}
	markerData, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(dataKey(m.DataPath), data, nil); err != nil {
		return err
	}
	if err := b.Set(markerKey(m.Batch()), markerData, nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// GetBatchData retrieves a compressed batch payload
func (s *PebbleStorage) GetBatchData(dataPath string) ([]byte, error) {
	return s.get(dataKey(dataPath))
}

func (s *PebbleStorage) GetMarker(batch batching.BlockBatch) (Marker, bool, error) {
	data, err := s.get(markerKey(batch))
	if errors.Is(err, ErrNotFound) {
		return Marker{}, false, nil
	}
	if err != nil {
		return Marker{}, false, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, false, fmt.Errorf("failed to decode marker %s: %w", batch.MarkerPath(), err)
	}
	return m, true, nil
}

// Markers returns every marker of chain. Filenames are zero padded, so key order is
// batch order.
func (s *PebbleStorage) Markers(chain string) ([]Marker, error) {
	prefix := chainMarkerPrefix(chain)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	markers := []Marker{}
	for iter.First(); iter.Valid(); iter.Next() {
		var m Marker
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("failed to decode marker %s: %w", iter.Key(), err)
		}
		markers = append(markers, m)
	}
	return markers, iter.Error()
}

func (s *PebbleStorage) LatestMarker(chain string) (Marker, bool, error) {
	prefix := chainMarkerPrefix(chain)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return Marker{}, false, err
	}
	defer iter.Close()

	if !iter.Last() {
		return Marker{}, false, iter.Error()
	}
	var m Marker
	if err := json.Unmarshal(iter.Value(), &m); err != nil {
		return Marker{}, false, fmt.Errorf("failed to decode marker %s: %w", iter.Key(), err)
	}
	return m, true, nil
}
