package codec

import (
	"bytes"
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type tomlStrict struct{}

// TOML decodes with unknown keys rejected so manifest typos surface at startup.
var TOML Codec = tomlStrict{}

func (tomlStrict) Marshal(v any) ([]byte, error) { return toml.Marshal(v) }

func (tomlStrict) Unmarshal(data []byte, v any) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("toml decode: %w", err)
	}
	return nil
}

func (tomlStrict) ContentType() string { return "application/toml" }

type yamlStrict struct{}

var YAML Codec = yamlStrict{}

func (yamlStrict) Marshal(v any) ([]byte, error) { return yaml.Marshal(v) }

func (yamlStrict) Unmarshal(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("yaml decode: %w", err)
	}
	return nil
}

func (yamlStrict) ContentType() string { return "application/yaml" }
