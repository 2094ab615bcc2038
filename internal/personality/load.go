package personality

import (
	"bytes"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// Load reads a Personality artifact (spec §6) from a YAML file. Unknown
// fields are rejected, matching spec §9's "typed Personality data with a
// validated schema; unknown fields rejected" guidance.
func Load(path string) (Personality, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Personality{}, fmt.Errorf("personality: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Personality
	if err := dec.Decode(&p); err != nil {
		return Personality{}, fmt.Errorf("personality: decode %s: %w", path, err)
	}
	if p.Name == "" {
		return Personality{}, fmt.Errorf("personality: %s: name is required", path)
	}
	return p, nil
}
