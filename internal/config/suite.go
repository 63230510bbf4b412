package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"
)

// DefaultSuiteFile is read from the working directory when present.
const DefaultSuiteFile = ".ac-conformance.jsonc"

// SuiteFile holds tunables that are not part of the CI environment
// contract. The file is JSONC, so it can carry comments explaining why a
// check is skipped for a given image line.
//
//	{
//	  // werkzeug pin lifted for this line
//	  "skip": ["werkzeug-version"],
//	  "dagTimeout": "3m",
//	}
type SuiteFile struct {
	Skip            []string `json:"skip,omitempty"`
	Only            []string `json:"only,omitempty"`
	DAGTimeout      string   `json:"dagTimeout,omitempty"`
	DAGPollInterval string   `json:"dagPollInterval,omitempty"`
	Maintainer      string   `json:"maintainer,omitempty"`
}

// LoadSuiteFile reads a suite file. When optional is true a missing file
// yields an empty SuiteFile instead of an error.
func LoadSuiteFile(path string, optional bool) (*SuiteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return &SuiteFile{}, nil
		}
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseSuiteFile(data)
}

// ParseSuiteFile decodes JSONC suite file content.
func ParseSuiteFile(data []byte) (*SuiteFile, error) {
	var sf SuiteFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &sf); err != nil {
		return nil, fmt.Errorf("failed to parse suite file: %w", err)
	}
	return &sf, nil
}

// Apply merges the suite file into c. Values already set from flags are
// expected to be applied after this call.
func (sf *SuiteFile) Apply(c *Config) error {
	if len(sf.Skip) > 0 {
		c.Skip = append(c.Skip, sf.Skip...)
	}
	if len(sf.Only) > 0 {
		c.Only = append(c.Only, sf.Only...)
	}
	if sf.DAGTimeout != "" {
		d, err := time.ParseDuration(sf.DAGTimeout)
		if err != nil {
			return fmt.Errorf("suite file: invalid dagTimeout: %w", err)
		}
		c.DAGTimeout = d
	}
	if sf.DAGPollInterval != "" {
		d, err := time.ParseDuration(sf.DAGPollInterval)
		if err != nil {
			return fmt.Errorf("suite file: invalid dagPollInterval: %w", err)
		}
		c.DAGPollInterval = d
	}
	if sf.Maintainer != "" {
		c.Maintainer = sf.Maintainer
	}
	return nil
}
