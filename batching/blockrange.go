package batching

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockRange is a requested span of blocks, [Min, Max). Unlike a BlockBatch it need
// not be aligned to anything.
type BlockRange struct {
	Min uint64 `json:"min"`
	Max uint64 `json:"max"`
}

func NewBlockRange(min, max uint64) (BlockRange, error) {
	if min > max {
		return BlockRange{}, fmt.Errorf("%w: min %d is above max %d", ErrInvalidRange, min, max)
	}
	return BlockRange{Min: min, Max: max}, nil
}

// ParseBlockRange parses "min:max" or "min:+count".
func ParseBlockRange(s string) (BlockRange, error) {
	minStr, maxStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return BlockRange{}, fmt.Errorf("%w: expected min:max, got %q", ErrInvalidRange, s)
	}

	min, err := strconv.ParseUint(minStr, 10, 64)
	if err != nil {
		return BlockRange{}, fmt.Errorf("%w: bad min in %q: %v", ErrInvalidRange, s, err)
	}

	if count, isCount := strings.CutPrefix(maxStr, "+"); isCount {
		n, err := strconv.ParseUint(count, 10, 64)
		if err != nil {
			return BlockRange{}, fmt.Errorf("%w: bad count in %q: %v", ErrInvalidRange, s, err)
		}
		if min+n < min {
			return BlockRange{}, fmt.Errorf("%w: %q overflows", ErrInvalidRange, s)
		}
		return NewBlockRange(min, min+n)
	}

	max, err := strconv.ParseUint(maxStr, 10, 64)
	if err != nil {
		return BlockRange{}, fmt.Errorf("%w: bad max in %q: %v", ErrInvalidRange, s, err)
	}
	return NewBlockRange(min, max)
}

func (r BlockRange) Len() uint64 {
	return r.Max - r.Min
}

func (r BlockRange) Contains(blockNumber uint64) bool {
	return blockNumber >= r.Min && blockNumber < r.Max
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Min, r.Max)
}
