package manifest

import (
	"fmt"
	"os"

	"github.com/joeydtaylor/steeze-cms/pkg/codec"
)

// Load reads and validates the manifest at path. The format follows the file
// extension (.toml, .yaml/.yml, .json).
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(path, b)
}

// Parse decodes b using the codec for name and validates the result.
func Parse(name string, b []byte) (Config, error) {
	var cfg Config
	if err := codec.ForPath(name).Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("manifest %s: %w", name, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("manifest %s: %w", name, err)
	}
	return cfg, nil
}
