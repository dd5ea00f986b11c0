package batching

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a delimiter list breaks the alignment rules.
	ErrInvalidConfig = errors.New("invalid batch configuration")
	// ErrCorruptDelimiter means a delimiter does not start on a multiple of its own
	// batch size. Validated configurations never produce it.
	ErrCorruptDelimiter = errors.New("corrupt delimiter")
	// ErrInconsistentBatch means the next regime did not start where the previous
	// batch ended.
	ErrInconsistentBatch = errors.New("inconsistent batch")
	ErrUnknownChain      = errors.New("unknown chain")
	ErrInvalidRange      = errors.New("invalid block range")
	// ErrTooManyBatches is returned by SplitN when a range needs more batches than allowed.
	ErrTooManyBatches = errors.New("too many batches")
)

// ConfigError ties a validation failure to the chain it was found in.
type ConfigError struct {
	Chain string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("chain %q: %v", e.Chain, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
