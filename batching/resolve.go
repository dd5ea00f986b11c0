package batching

import "fmt"

// FindActiveDelimiter returns the delimiter whose regime covers blockNumber: the one
// with the greatest BlockNumber not above it. Blocks past the last delimiter belong to
// the last regime, which never ends.
func FindActiveDelimiter(delims []Delimiter, blockNumber uint64) (Delimiter, error) {
	if len(delims) == 0 {
		return Delimiter{}, fmt.Errorf("%w: no delimiters configured", ErrInvalidConfig)
	}

	active := delims[0]
	for _, d := range delims {
		if d.BatchSize == 0 || d.BlockNumber%d.BatchSize != 0 {
			return Delimiter{}, fmt.Errorf("%w: %s", ErrCorruptDelimiter, d)
		}
		if d.BlockNumber > blockNumber {
			break
		}
		active = d
	}
	return active, nil
}

// AlignedStart returns the first block of the active regime's batch that contains
// blockNumber.
func AlignedStart(blockNumber uint64, active Delimiter) uint64 {
	return blockNumber - blockNumber%active.BatchSize
}

// ResolveBatchStart describes the batch that contains blockNumber: its aligned first
// block and the batch size in effect there.
func ResolveBatchStart(delims []Delimiter, blockNumber uint64) (Delimiter, error) {
	active, err := FindActiveDelimiter(delims, blockNumber)
	if err != nil {
		return Delimiter{}, err
	}
	return Delimiter{
		BlockNumber: AlignedStart(blockNumber, active),
		BatchSize:   active.BatchSize,
	}, nil
}
