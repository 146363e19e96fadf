package uptime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// caseFile is the shape of a test-case file: {"testCases": [...]}.
type caseFile struct {
	TestCases []json.RawMessage `json:"testCases"`
}

type yamlCaseFile struct {
	TestCases []any `yaml:"testCases"`
}

// LoadCases reads the polling set from a JSON or YAML file. JSON values keep their
// exact encoding; YAML values are re-encoded as JSON.
func LoadCases(path string) ([]Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("uptime: read cases: %w", err)
	}

	var cases []Input
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var f yamlCaseFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("uptime: parse cases %s: %w", path, err)
		}
		for i, v := range f.TestCases {
			in, err := ValueInput(v)
			if err != nil {
				return nil, fmt.Errorf("uptime: case %d in %s: %w", i, path, err)
			}
			cases = append(cases, in)
		}
	default:
		var f caseFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("uptime: parse cases %s: %w", path, err)
		}
		for i, raw := range f.TestCases {
			in, err := JSONInput(raw)
			if err != nil {
				return nil, fmt.Errorf("uptime: case %d in %s: %w", i, path, err)
			}
			cases = append(cases, in)
		}
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCases, path)
	}
	return cases, nil
}
