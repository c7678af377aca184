package registry

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vjranagit/chronoscope/pkg/types"
)

// Manifest describes the infrastructure tree as a flat list of nodes with
// their tracked attributes
type Manifest struct {
	Nodes []ManifestNode `yaml:"nodes"`
}

// ManifestNode is one node of the infrastructure tree
type ManifestNode struct {
	Name       string            `yaml:"name"`
	Parent     string            `yaml:"parent"`
	Labels     map[string]string `yaml:"labels"`
	Attributes []types.Attribute `yaml:"attributes"`
}

// DefaultManifest is used when no manifest file is configured
func DefaultManifest() *Manifest {
	return &Manifest{
		Nodes: []ManifestNode{
			{
				Name:   "web-1",
				Labels: map[string]string{"tier": "frontend"},
				Attributes: []types.Attribute{
					{Name: "load", Unit: "%", Type: types.ValueNumeric, Min: 0, Max: 1},
					{Name: "net_in", Unit: "B/s", Type: types.ValueBytes, Min: 0, Max: 1 << 20},
				},
			},
			{
				Name:   "db-1",
				Parent: "web-1",
				Labels: map[string]string{"tier": "storage"},
				Attributes: []types.Attribute{
					{Name: "load", Unit: "%", Type: types.ValueNumeric, Min: 0, Max: 1},
				},
			},
		},
	}
}

// ReadManifest parses a YAML manifest
func ReadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if err == io.EOF {
			return &m, nil
		}
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// LoadManifestFile reads the manifest at path, or the default one when path is empty
func LoadManifestFile(path string) (*Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return ReadManifest(f)
}

// Attributes flattens the manifest. Node labels are inherited by attributes,
// and the parent node is exposed as the "parent" label.
func (m *Manifest) Attributes() []types.Attribute {
	var out []types.Attribute
	for _, node := range m.Nodes {
		for _, attr := range node.Attributes {
			attr.Node = node.Name

			labels := make(map[string]string, len(node.Labels)+len(attr.Labels)+1)
			for k, v := range node.Labels {
				labels[k] = v
			}
			for k, v := range attr.Labels {
				labels[k] = v
			}
			if node.Parent != "" {
				labels["parent"] = node.Parent
			}
			attr.Labels = labels

			out = append(out, attr)
		}
	}
	return out
}

// Apply registers every manifest attribute into r
func (m *Manifest) Apply(r *Registry) ([]*Entry, error) {
	attrs := m.Attributes()
	entries := make([]*Entry, 0, len(attrs))
	for _, attr := range attrs {
		e, err := r.Register(attr)
		if err != nil {
			return nil, fmt.Errorf("failed to register %s/%s: %w", attr.Node, attr.Name, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
