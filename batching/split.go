package batching

import "fmt"

// SplitFromDelimiters validates delims and splits r into batches for chain.
//
// The first batch starts at the aligned boundary at or before r.Min, so it may begin
// earlier than requested. Batches are never clipped at r.Max: the last one ends on a
// regime boundary, which lies past r.Max when r.Max is not aligned.
func SplitFromDelimiters(chain string, delims []Delimiter, r BlockRange) ([]BlockBatch, error) {
	if err := Validate(delims); err != nil {
		return nil, &ConfigError{Chain: chain, Err: err}
	}
	return split(chain, delims, r, 0)
}

// Split splits r using the chain's validated delimiters.
func (s *Store) Split(chain string, r BlockRange) ([]BlockBatch, error) {
	return s.SplitN(chain, r, 0)
}

// SplitN is Split that gives up with ErrTooManyBatches as soon as r needs more than
// limit batches. A limit of zero or less means no limit.
func (s *Store) SplitN(chain string, r BlockRange, limit int) ([]BlockBatch, error) {
	delims, ok := s.chains[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chain)
	}
	return split(chain, delims, r, limit)
}

// BatchFor returns the batch of chain that contains blockNumber.
func (s *Store) BatchFor(chain string, blockNumber uint64) (BlockBatch, error) {
	batches, err := s.Split(chain, BlockRange{Min: blockNumber, Max: blockNumber + 1})
	if err != nil {
		return BlockBatch{}, err
	}
	if len(batches) != 1 {
		return BlockBatch{}, fmt.Errorf("%w: block %d resolved to %d batches", ErrInconsistentBatch, blockNumber, len(batches))
	}
	return batches[0], nil
}

func split(chain string, delims []Delimiter, r BlockRange, limit int) ([]BlockBatch, error) {
	if r.Min > r.Max {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}

	current, err := ResolveBatchStart(delims, r.Min)
	if err != nil {
		return nil, err
	}

	batches := []BlockBatch{}
	for current.BlockNumber < r.Max {
		if limit > 0 && len(batches) == limit {
			return nil, fmt.Errorf("%w: %s needs more than %d", ErrTooManyBatches, r, limit)
		}

		next := current.NextBlock()
		if next <= current.BlockNumber {
			return nil, fmt.Errorf("%w: block number overflow after %s", ErrInconsistentBatch, current)
		}

		active, err := FindActiveDelimiter(delims, next)
		if err != nil {
			return nil, err
		}
		// A regime that begins inside the batch we are about to emit would split it.
		if active.BlockNumber > current.BlockNumber && active.BlockNumber != next {
			return nil, fmt.Errorf("%w: %s .. %s", ErrInconsistentBatch, current, active)
		}
		if AlignedStart(next, active) != next {
			return nil, fmt.Errorf("%w: %s .. %s", ErrInconsistentBatch, current, active)
		}

		batches = append(batches, BlockBatch{Chain: chain, Min: current.BlockNumber, Max: next})
		current = Delimiter{BlockNumber: next, BatchSize: active.BatchSize}
	}
	return batches, nil
}
