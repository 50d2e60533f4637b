package module

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadParameters reads a parameters file. JSON and YAML are accepted, both in
// the shape {"<ModuleID>": {"<name>": value}}. JSON numbers are kept as
// json.Number and plain YAML integers as strings so uint256 values survive.
func LoadParameters(path string) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameters file: %w", err)
	}

	params := make(Parameters)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML parameters: %w", err)
		}
		if doc.Kind == 0 {
			return params, nil
		}
		keepIntegerText(&doc)
		if err := doc.Decode(&params); err != nil {
			return nil, fmt.Errorf("invalid YAML parameters: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&params); err != nil {
			return nil, fmt.Errorf("invalid JSON parameters: %w", err)
		}
	}
	return params, nil
}

var integerLiteral = regexp.MustCompile(`^([-+]?[0-9][0-9_]*|0[xX][0-9a-fA-F_]+)$`)

// keepIntegerText retags plain integer scalars as strings. yaml.v3 otherwise
// turns integers beyond 64 bits into float64.
func keepIntegerText(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Style == 0 && integerLiteral.MatchString(n.Value) {
		n.Tag = "!!str"
	}
	for _, c := range n.Content {
		keepIntegerText(c)
	}
}

// ParseAssignment parses a "name=value" or "Module.name=value" override.
// A bare name is bound to defaultModule.
func ParseAssignment(s, defaultModule string) (moduleID, name, value string, err error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", "", "", fmt.Errorf("invalid parameter %q: expected name=value", s)
	}
	key = strings.TrimSpace(key)
	if mod, param, found := strings.Cut(key, "."); found {
		return mod, param, value, nil
	}
	return defaultModule, key, value, nil
}
