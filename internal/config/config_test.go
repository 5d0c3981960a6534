package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Port    int           `yaml:"port"`
	Bind    string        `yaml:"bind"`
	Timeout time.Duration `yaml:"timeout"`
	Nested  struct {
		Level int `yaml:"level"`
	} `yaml:"nested"`
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "framestream.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	v := sample{Port: 8080, Bind: "0.0.0.0"}
	v.Nested.Level = 3

	require.NoError(t, LoadYAML(writeFile(t, "port: 9000\ntimeout: 2s\n"), &v))
	assert.Equal(t, 9000, v.Port)
	assert.Equal(t, "0.0.0.0", v.Bind)
	assert.Equal(t, 2*time.Second, v.Timeout)
	assert.Equal(t, 3, v.Nested.Level)
}

func TestLoadYAMLEmptyFile(t *testing.T) {
	v := sample{Port: 8080}
	require.NoError(t, LoadYAML(writeFile(t, ""), &v))
	assert.Equal(t, 8080, v.Port)
}

func TestLoadYAMLErrors(t *testing.T) {
	var v sample
	assert.Error(t, LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"), &v))
	assert.ErrorContains(t, LoadYAML(writeFile(t, "prot: 1\n"), &v), "prot")
	assert.Error(t, LoadYAML(writeFile(t, "port: [\n"), &v))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("FRAMESTREAM_BIND", "127.0.0.1")
	t.Setenv("FRAMESTREAM_PORT", "9001")
	t.Setenv("FRAMESTREAM_VERBOSE", "true")
	t.Setenv("FRAMESTREAM_TIMEOUT", "250ms")
	t.Setenv("FRAMESTREAM_BAD", "nope")

	assert.True(t, IsSet("BIND"))
	assert.False(t, IsSet("UNSET"))
	assert.Equal(t, "127.0.0.1", String("BIND", ""))
	assert.Equal(t, "dflt", String("UNSET", "dflt"))

	port, err := Int("PORT", 8080)
	require.NoError(t, err)
	assert.Equal(t, 9001, port)

	verbose, err := Bool("VERBOSE", false)
	require.NoError(t, err)
	assert.True(t, verbose)

	d, err := Duration("TIMEOUT", 0)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = Int("BAD", 1)
	assert.ErrorContains(t, err, "FRAMESTREAM_BAD")
	_, err = Bool("BAD", false)
	assert.Error(t, err)

	n, err := Int("UNSET", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
