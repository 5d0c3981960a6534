// Package config provides configuration helpers for framestream commands:
// YAML file loading and environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FRAMESTREAM_"

// LoadYAML decodes the file at path into v, which should already hold
// defaults. Keys absent from the file keep their default. Unknown keys are
// an error.
func LoadYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// IsSet reports whether FRAMESTREAM_<name> is set to a non-empty value.
func IsSet(name string) bool {
	v, ok := os.LookupEnv(EnvPrefix + name)
	return ok && v != ""
}

// String returns FRAMESTREAM_<name> from the environment.
// Falls back to the provided default if not set.
func String(name, def string) string {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
		return v
	}
	return def
}

// Int returns FRAMESTREAM_<name> parsed as an integer, or def if unset.
func Int(name string, def int) (int, error) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	return n, nil
}

// Bool returns FRAMESTREAM_<name> parsed as a boolean, or def if unset.
func Bool(name string, def bool) (bool, error) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	return b, nil
}

// Duration returns FRAMESTREAM_<name> parsed as a duration, or def if unset.
func Duration(name string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	return d, nil
}
