// Package batching splits block ranges into deterministic, boundary-aligned batches.
//
// Each chain carries an ordered list of delimiters. A delimiter marks the block at
// which a new batch size takes effect. Batches never straddle a delimiter, so the
// same block always lands in the same batch no matter how the requested range was cut.
package batching

import "fmt"

// Delimiter marks the first block of a fixed batch size regime.
type Delimiter struct {
	BlockNumber uint64 `yaml:"block" json:"block"`
	BatchSize   uint64 `yaml:"batch_size" json:"batchSize"`
}

// NextBlock returns the first block after the batch that starts at BlockNumber.
func (d Delimiter) NextBlock() uint64 {
	return d.BlockNumber + d.BatchSize
}

func (d Delimiter) String() string {
	return fmt.Sprintf("Delimiter(block=%d, size=%d)", d.BlockNumber, d.BatchSize)
}
