package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeydtaylor/steeze-cms/pkg/codec"
)

type doc struct {
	Name string `json:"name" toml:"name" yaml:"name"`
}

func TestForPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, codec.JSONStrict, codec.ForPath("m.json"))
	require.Equal(t, codec.YAML, codec.ForPath("m.YML"))
	require.Equal(t, codec.YAML, codec.ForPath("/etc/cms/manifest.yaml"))
	require.Equal(t, codec.TOML, codec.ForPath("manifest.toml"))
	require.Equal(t, codec.TOML, codec.ForPath("manifest"))
}

func TestJSONStrictRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()

	var d doc
	require.NoError(t, codec.JSONStrict.Unmarshal([]byte(`{"name":"a"}`), &d))
	require.Equal(t, "a", d.Name)

	require.Error(t, codec.JSONStrict.Unmarshal([]byte(`{"name":"a","x":1}`), &d))
	require.Error(t, codec.JSONStrict.Unmarshal([]byte(`{"name":"a"} {}`), &d))

	out, err := codec.JSONStrict.Marshal(doc{Name: "<b>"})
	require.NoError(t, err)
	require.Equal(t, `{"name":"<b>"}`, string(out))
}

func TestTOMLAndYAMLRejectUnknownKeys(t *testing.T) {
	t.Parallel()

	var d doc
	require.NoError(t, codec.TOML.Unmarshal([]byte(`name = "t"`), &d))
	require.Equal(t, "t", d.Name)
	require.Error(t, codec.TOML.Unmarshal([]byte("name = \"t\"\nother = 1"), &d))

	d = doc{}
	require.NoError(t, codec.YAML.Unmarshal([]byte("name: y\n"), &d))
	require.Equal(t, "y", d.Name)
	require.Error(t, codec.YAML.Unmarshal([]byte("name: y\nother: 1\n"), &d))
}
