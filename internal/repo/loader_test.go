package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashmap-kz/metanode/internal/metastack"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadNodeConfigDefaultsPortAndName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "web1.yaml")
	writeFile(t, path, "hostname: web1.internal\nbundles: [base]\n")

	cfg, err := LoadNodeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "web1", cfg.Name)
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, []string{"base"}, cfg.Bundles)
}

func TestLoadLayersInsertsInFilenameOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "app:\n  port: 8080\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "app:\n  port: 9090\n")

	stack := metastack.New()
	require.NoError(t, LoadLayers(dir, stack))

	frozen, err := stack.GetStrict([]string{"app", "port"})
	require.NoError(t, err)
	assert.Equal(t, float64(9090), frozen.Unwrap())
}

func TestLoadLayersSkipsBundlesDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yaml"), "app:\n  name: demo\n")
	writeFile(t, filepath.Join(dir, "bundles", "base.yaml"), "items: []\n")

	stack := metastack.New()
	require.NoError(t, LoadLayers(dir, stack))
	assert.True(t, stack.Has([]string{"app", "name"}))
}

func TestLoadBundleParsesItemsAndDeps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bundles", "base.yaml"), `
items:
  - type: file
    name: /etc/motd
    needs: ["file:/etc/issue"]
    mode: "644"
  - type: file
    name: /etc/issue
`)

	b, err := LoadBundle(dir, "base")
	require.NoError(t, err)
	assert.Equal(t, "base", b.Name)
	require.Len(t, b.Items, 2)
	assert.Equal(t, "file", b.Items[0].Type)
	assert.Equal(t, "/etc/motd", b.Items[0].Name)
	assert.Equal(t, []string{"file:/etc/issue"}, b.Items[0].Deps)
	assert.Equal(t, "644", b.Items[0].Raw["mode"])
}

func TestLoadBundlesForNodeRespectsOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bundles", "base.yaml"), "items: []\n")
	writeFile(t, filepath.Join(dir, "bundles", "web.yaml"), "items: []\n")

	cfg := &NodeConfig{Bundles: []string{"base", "web"}}
	bundles, err := LoadBundlesForNode(dir, cfg)
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, "base", bundles[0].Name)
	assert.Equal(t, "web", bundles[1].Name)
}
