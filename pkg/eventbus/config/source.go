package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type format string

const (
	formatYAML format = "yaml"
	formatJSON format = "json"
)

var formats = map[string]format{
	".yaml": formatYAML,
	".yml":  formatYAML,
	".json": formatJSON,
}

// FromFile loads settings from path, choosing the format by extension
// (.yaml, .yml or .json). Errors from Bus on the result name the file.
func FromFile(path string) (Values, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := formats[ext]
	if !ok {
		return Values{}, fmt.Errorf("unsupported config file extension %q: %s", ext, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Values{}, fmt.Errorf("read config file: %w", err)
	}
	vals, err := decode(f, data)
	if err != nil {
		return Values{}, fmt.Errorf("%s: %w", path, err)
	}
	vals.source = path
	return vals, nil
}

// FromYAML parses a YAML mapping.
func FromYAML(data []byte) (Values, error) {
	return decode(formatYAML, data)
}

// FromJSON parses a JSON object.
func FromJSON(data []byte) (Values, error) {
	return decode(formatJSON, data)
}

func decode(f format, data []byte) (Values, error) {
	var m map[string]any
	var err error
	switch f {
	case formatJSON:
		err = json.Unmarshal(data, &m)
	default:
		err = yaml.Unmarshal(data, &m)
	}
	if err != nil {
		return Values{}, fmt.Errorf("parse %s: %w", f, err)
	}
	return New(m), nil
}

// Source is the file the values were loaded from, or "" for in-memory data.
func (v Values) Source() string {
	return v.source
}
