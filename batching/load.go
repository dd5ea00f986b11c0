package batching

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type policyFile struct {
	Chains map[string][]Delimiter `yaml:"chains"`
}

// LoadConfiguration decodes a YAML batch size policy. The result is not validated;
// pass it to NewStore.
func LoadConfiguration(r io.Reader) (map[string][]Delimiter, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var pf policyFile
	if err := dec.Decode(&pf); err != nil {
		if err == io.EOF {
			return map[string][]Delimiter{}, nil
		}
		return nil, fmt.Errorf("failed to decode batch policy: %w", err)
	}
	if pf.Chains == nil {
		pf.Chains = map[string][]Delimiter{}
	}
	return pf.Chains, nil
}

func LoadConfigurationFile(path string) (map[string][]Delimiter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch policy: %w", err)
	}
	defer f.Close()
	return LoadConfiguration(f)
}

// MergeConfiguration returns base with every chain in overrides replaced wholesale.
// Delimiter lists are never merged within a chain.
func MergeConfiguration(base, overrides map[string][]Delimiter) map[string][]Delimiter {
	merged := make(map[string][]Delimiter, len(base)+len(overrides))
	for chain, delims := range base {
		merged[chain] = delims
	}
	for chain, delims := range overrides {
		merged[chain] = delims
	}
	return merged
}
