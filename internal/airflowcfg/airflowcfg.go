// Package airflowcfg reads the default_airflow.cfg template vendored inside
// an Airflow installation and answers "what is key K set to".
package airflowcfg

import (
	"bufio"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// RelativePath is where the template lives below the Python stdlib
// directory's parent (i.e., relative to ".../lib/python3.X").
const RelativePath = "site-packages/airflow/config_templates/default_airflow.cfg"

// Config is a parsed default_airflow.cfg.
type Config struct {
	file *ini.File
	raw  string
}

// Parse loads the template. Airflow writes it for Python's ConfigParser,
// so multi-line values and "#" inside values are accepted as ConfigParser
// would.
func Parse(content string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:        true,
		AllowPythonMultilineValues: true,
		SkipUnrecognizableLines:    true,
		AllowShadows:               true,
	}, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse airflow config: %w", err)
	}
	return &Config{file: f, raw: content}, nil
}

// Get returns the value of key in section. ok is false when the section
// or the key does not exist.
func (c *Config) Get(section, key string) (string, bool) {
	sec, err := c.file.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return "", false
	}
	return sec.Key(key).String(), true
}

// FirstMatch returns the third whitespace-separated field of the first
// line that starts with key, regardless of section. This is the
// "grep '^key' | awk '{print $3}'" reading older tooling relied on, kept
// for keys whose section moved between Airflow releases.
func (c *Config) FirstMatch(key string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(c.raw))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, key) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return "", true
		}
		return fields[2], true
	}
	return "", false
}

// Lookup tries section/key first and falls back to FirstMatch.
func (c *Config) Lookup(section, key string) (string, bool) {
	if v, ok := c.Get(section, key); ok {
		return v, true
	}
	return c.FirstMatch(key)
}
