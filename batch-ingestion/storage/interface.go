package storage

import (
	"time"

	"github.com/containerman17/op-batches/batching"
)

// Marker records that a batch was fully ingested. It is written in the same commit
// as the batch payload, so a marker always points at complete data.
type Marker struct {
	Chain     string    `json:"chain"`
	Min       uint64    `json:"min"`
	Max       uint64    `json:"max"`
	Dt        string    `json:"dt"`
	DataPath  string    `json:"data_path"`
	NumBlocks uint64    `json:"num_blocks"`
	RunID     string    `json:"run_id"`
	WrittenAt time.Time `json:"written_at"`
}

// Batch returns the batch the marker was written for.
func (m Marker) Batch() batching.BlockBatch {
	return batching.BlockBatch{Chain: m.Chain, Min: m.Min, Max: m.Max}
}

// Storage defines the interface for batch storage operations
type Storage interface {
	// SaveBatch stores a compressed batch payload and its completion marker atomically
	SaveBatch(m Marker, data []byte) error
	// GetBatchData returns the compressed payload stored under a data path
	GetBatchData(dataPath string) ([]byte, error)

	// GetMarker returns the marker of batch, if the batch was completed
	GetMarker(batch batching.BlockBatch) (Marker, bool, error)
	// Markers returns every marker of chain, ordered by batch start
	Markers(chain string) ([]Marker, error)
	// LatestMarker returns the marker with the highest batch start for chain
	LatestMarker(chain string) (Marker, bool, error)

	Close() error
}
