package repo

import (
	"fmt"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/hashmap-kz/metanode/internal/metadata"
	"github.com/hashmap-kz/metanode/internal/metastack"
)

// NodeConfig is the top-level node file: connection details plus the
// ordered list of bundle names this node should apply.
type NodeConfig struct {
	Name     string   `json:"name"`
	Hostname string   `json:"hostname"`
	Port     int      `json:"port"`
	User     string   `json:"user"`
	Bundles  []string `json:"bundles"`
}

// LoadNodeConfig reads and parses a node file.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	raw, err := ReadFileContent(path)
	if err != nil {
		return nil, fmt.Errorf("repo: read node config %s: %w", path, err)
	}
	var cfg NodeConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("repo: parse node config %s: %w", path, err)
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &cfg, nil
}

// LoadLayers walks bundleDir for metadata-layer YAML files (every
// *.yaml/*.yml that is not a bundle manifest) and inserts each as a
// named layer into stack, in filename order, so insertion order
// matches the deterministic order spec.md §4.B requires.
func LoadLayers(bundleDir string, stack *metastack.Metastack) error {
	files, err := ResolveAllFiles([]string{bundleDir}, true)
	if err != nil {
		return err
	}
	for _, f := range files {
		if strings.Contains(filepath.ToSlash(f), "/bundles/") {
			continue
		}
		layer, err := loadLayer(f)
		if err != nil {
			return err
		}
		identifier := layerIdentifier(bundleDir, f)
		if _, err := stack.SetLayer(identifier, layer); err != nil {
			return fmt.Errorf("repo: layer %s: %w", identifier, err)
		}
	}
	return nil
}

func loadLayer(path string) (metadata.Layer, error) {
	raw, err := ReadFileContent(path)
	if err != nil {
		return nil, err
	}
	var layer metadata.Layer
	if err := yaml.Unmarshal(raw, &layer); err != nil {
		return nil, fmt.Errorf("repo: parse layer %s: %w", path, err)
	}
	if err := metadata.Validate(layer); err != nil {
		return nil, fmt.Errorf("repo: invalid layer %s: %w", path, err)
	}
	return layer, nil
}

func layerIdentifier(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(strings.TrimSuffix(rel, ".yaml"), ".yml")
}

// Bundle is a named, ordered collection of item definitions loaded
// from bundles/<name>.yaml. The item schema itself is intentionally
// generic (map[string]any) here: concrete item types (internal/items/file
// and whatever a deployment adds) decode their own attributes out of
// Raw.
type Bundle struct {
	Name  string
	Items []BundleItem
}

// BundleItem is one undifferentiated entry inside a bundle file before
// it has been resolved to a concrete item.Item.
type BundleItem struct {
	Type string
	Name string
	Deps []string
	Raw  map[string]any
}

// LoadBundle parses a single bundles/<name>.yaml file.
func LoadBundle(bundleDir, name string) (*Bundle, error) {
	path := filepath.Join(bundleDir, "bundles", name+".yaml")
	raw, err := ReadFileContent(path)
	if err != nil {
		return nil, fmt.Errorf("repo: read bundle %s: %w", name, err)
	}

	var generic struct {
		Items []map[string]any `json:"items"`
	}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("repo: parse bundle %s: %w", name, err)
	}

	b := &Bundle{Name: name}
	for _, item := range generic.Items {
		typ, _ := item["type"].(string)
		nm, _ := item["name"].(string)
		if typ == "" || nm == "" {
			return nil, fmt.Errorf("repo: bundle %s: item missing type/name", name)
		}
		var deps []string
		if raw, ok := item["needs"].([]any); ok {
			for _, d := range raw {
				if s, ok := d.(string); ok {
					deps = append(deps, s)
				}
			}
		}
		attrs := map[string]any{}
		for k, v := range item {
			if k == "type" || k == "name" || k == "needs" {
				continue
			}
			attrs[k] = v
		}
		b.Items = append(b.Items, BundleItem{Type: typ, Name: nm, Deps: deps, Raw: attrs})
	}
	return b, nil
}

// LoadBundlesForNode loads every bundle a NodeConfig references, in
// the order it lists them.
func LoadBundlesForNode(bundleDir string, cfg *NodeConfig) ([]*Bundle, error) {
	bundles := make([]*Bundle, 0, len(cfg.Bundles))
	for _, name := range cfg.Bundles {
		b, err := LoadBundle(bundleDir, name)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}
