package release

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed images.yaml
var imagesYAML []byte

// ImageEntry pairs a release id with the base OS tags it is built on.
type ImageEntry struct {
	Release string   `json:"release"`
	Distros []string `json:"distros"`
}

// ImageMap is the ordered release → base image mapping CI builds from.
// Order matters: CI builds and publishes releases in document order.
type ImageMap struct {
	entries []ImageEntry
}

// DefaultImageMap decodes the embedded images.yaml.
func DefaultImageMap() (*ImageMap, error) {
	return ParseImageMap(imagesYAML)
}

// ParseImageMap decodes a YAML mapping of release id to a list of base OS
// tags. yaml.v3 nodes are walked directly so the mapping keeps the order
// it has in the document, which a Go map would lose.
func ParseImageMap(data []byte) (*ImageMap, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse image map: %w", err)
	}
	if len(doc.Content) == 0 {
		return &ImageMap{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("image map must be a mapping, got %s at line %d", kindName(root.Kind), root.Line)
	}

	m := &ImageMap{entries: make([]ImageEntry, 0, len(root.Content)/2)}
	seen := make(map[string]bool)

	// MappingNode.Content alternates key, value, key, value...
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		var distros []string
		if err := value.Decode(&distros); err != nil {
			return nil, fmt.Errorf("release %q: distros must be a list of strings: %w", key.Value, err)
		}
		if seen[key.Value] {
			return nil, fmt.Errorf("release %q listed twice (line %d)", key.Value, key.Line)
		}
		seen[key.Value] = true

		m.entries = append(m.entries, ImageEntry{Release: key.Value, Distros: distros})
	}

	return m, nil
}

// Entries returns the mapping in document order.
func (m *ImageMap) Entries() []ImageEntry {
	out := make([]ImageEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Releases returns the release ids in document order.
func (m *ImageMap) Releases() []string {
	ids := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		ids = append(ids, e.Release)
	}
	return ids
}

// Lookup returns the base OS tags for a release id.
func (m *ImageMap) Lookup(id string) ([]string, error) {
	for _, e := range m.entries {
		if e.Release == id {
			return e.Distros, nil
		}
	}
	return nil, fmt.Errorf("release %q is not in the image map", id)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "mapping"
	}
}
