package batching

import (
	"fmt"
	"slices"
	"sort"
)

// Validate checks a chain's delimiter list. Nothing is repaired: the first broken
// rule is reported with the offending delimiter or pair.
func Validate(delims []Delimiter) error {
	if len(delims) == 0 {
		return fmt.Errorf("%w: no delimiters configured", ErrInvalidConfig)
	}

	for i, d := range delims {
		if d.BatchSize == 0 {
			return fmt.Errorf("%w: batch size must be positive: %s", ErrInvalidConfig, d)
		}

		if i == 0 {
			if d.BlockNumber != 0 {
				return fmt.Errorf("%w: the first delimiter should always start at block 0: %s", ErrInvalidConfig, d)
			}
		} else {
			prev := delims[i-1]
			if d.BlockNumber <= prev.BlockNumber {
				return fmt.Errorf("%w: delimiters must be strictly ascending: %s -> %s", ErrInvalidConfig, prev, d)
			}
			if (d.BlockNumber-prev.BlockNumber)%prev.BatchSize != 0 {
				return fmt.Errorf("%w: delimiter block number should align: %s -> %s", ErrInvalidConfig, prev, d)
			}
		}

		// The resolver computes batch starts as multiples of the batch size, so a
		// regime that starts off its own grid can never line up with its neighbours.
		if d.BlockNumber%d.BatchSize != 0 {
			return fmt.Errorf("%w: delimiter block number is not a multiple of its batch size: %s", ErrInvalidConfig, d)
		}
	}
	return nil
}

// ValidateAll validates every chain in cfg. Chains are checked in name order so the
// reported error is stable across runs.
func ValidateAll(cfg map[string][]Delimiter) error {
	chains := make([]string, 0, len(cfg))
	for chain := range cfg {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		if err := Validate(cfg[chain]); err != nil {
			return &ConfigError{Chain: chain, Err: err}
		}
	}
	return nil
}

// Store holds the validated delimiter lists of every configured chain.
// It is never mutated after construction and is safe for concurrent use.
type Store struct {
	chains map[string][]Delimiter
}

// NewStore validates cfg and returns a store over a private copy of it.
// Call it once at startup so that an invalid policy stops the process before
// any ingestion begins.
func NewStore(cfg map[string][]Delimiter) (*Store, error) {
	if err := ValidateAll(cfg); err != nil {
		return nil, err
	}
	chains := make(map[string][]Delimiter, len(cfg))
	for chain, delims := range cfg {
		chains[chain] = slices.Clone(delims)
	}
	return &Store{chains: chains}, nil
}

// With returns a new store where chain uses delims. The receiver is left untouched.
func (s *Store) With(chain string, delims []Delimiter) (*Store, error) {
	if err := Validate(delims); err != nil {
		return nil, &ConfigError{Chain: chain, Err: err}
	}
	chains := make(map[string][]Delimiter, len(s.chains)+1)
	for c, d := range s.chains {
		chains[c] = d
	}
	chains[chain] = slices.Clone(delims)
	return &Store{chains: chains}, nil
}

// Has reports whether chain is configured.
func (s *Store) Has(chain string) bool {
	_, ok := s.chains[chain]
	return ok
}

// Chains returns the configured chain names in sorted order.
func (s *Store) Chains() []string {
	chains := make([]string, 0, len(s.chains))
	for chain := range s.chains {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// Delimiters returns a copy of the delimiter list configured for chain.
func (s *Store) Delimiters(chain string) ([]Delimiter, error) {
	delims, ok := s.chains[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chain)
	}
	return slices.Clone(delims), nil
}

// Configuration returns a copy of the whole chain -> delimiters mapping.
func (s *Store) Configuration() map[string][]Delimiter {
	cfg := make(map[string][]Delimiter, len(s.chains))
	for chain, delims := range s.chains {
		cfg[chain] = slices.Clone(delims)
	}
	return cfg
}
