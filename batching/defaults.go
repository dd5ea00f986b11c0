package batching

// Chains that grow in usage move to progressively smaller batches. Smaller chains
// keep a single large batch size for their whole history.
const defaultBatchSize = 20000

var defaultChains = []string{
	"automata", "bob", "cyber", "fraxtal", "ham", "kroma", "lisk", "lyra", "metal",
	"mint", "mode", "orderly", "polynomial", "race", "redstone", "shape", "swan",
	"xterio", "zora", "worldchain",
}

// DefaultConfiguration returns the built-in batch size policy for every known chain.
func DefaultConfiguration() map[string][]Delimiter {
	cfg := map[string][]Delimiter{
		"base": {
			{BlockNumber: 0, BatchSize: 10000},
			{BlockNumber: 10000000, BatchSize: 5000},
			{BlockNumber: 15000000, BatchSize: 2000},
			{BlockNumber: 20900000, BatchSize: 1000},
		},
		"op": {
			{BlockNumber: 0, BatchSize: 10000},
			{BlockNumber: 62000000, BatchSize: 5000},
			{BlockNumber: 94000000, BatchSize: 2000},
		},
	}
	for _, chain := range defaultChains {
		cfg[chain] = []Delimiter{{BlockNumber: 0, BatchSize: defaultBatchSize}}
	}
	return cfg
}

// DefaultStore returns a store over DefaultConfiguration.
// It panics if the built-in policy is invalid, which the tests rule out.
func DefaultStore() *Store {
	s, err := NewStore(DefaultConfiguration())
	if err != nil {
		panic(err)
	}
	return s
}
