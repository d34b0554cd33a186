package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProject creates a project directory with the given project file and
// an existing src directory.
func writeProject(t *testing.T, name, content string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	return dir
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_JSONC(t *testing.T) {
	dir := writeProject(t, FileNameJSON, `{
  // project name on the remote account
  "name": "my-project",
  "srcDir": "src",
  "components": ["app", "js",],
}`)

	cfg, err := Load(filepath.Join(dir, FileNameJSON))
	require.NoError(t, err)
	assert.Equal(t, "my-project", cfg.Name)
	assert.Equal(t, "src", cfg.SrcDir)
	assert.Equal(t, []string{"app", "js"}, cfg.Components)
}

func TestLoad_YAML(t *testing.T) {
	dir := writeProject(t, FileNameYAML, "name: yaml-project\nsrcDir: src\nplatformVersion: 2023.2.0\n")

	cfg, err := Load(filepath.Join(dir, FileNameYAML))
	require.NoError(t, err)
	assert.Equal(t, "yaml-project", cfg.Name)
	assert.Equal(t, "2023.2.0", cfg.PlatformVersion)
}

func TestLoad_Malformed(t *testing.T) {
	dir := writeProject(t, FileNameJSON, `{"name": `)

	_, err := Load(filepath.Join(dir, FileNameJSON))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load("/nonexistent/devloop.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading")
}

// ---------------------------------------------------------------------------
// Discover
// ---------------------------------------------------------------------------

func TestDiscover_WalksUp(t *testing.T) {
	dir := writeProject(t, FileNameJSON, `{"name": "p", "srcDir": "src"}`)
	nested := filepath.Join(dir, "src", "deep", "er")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, projectDir, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, "p", cfg.Name)
	assert.Equal(t, dir, projectDir)
}

func TestDiscover_FromFile(t *testing.T) {
	dir := writeProject(t, FileNameJSON, `{"name": "p", "srcDir": "src"}`)
	file := filepath.Join(dir, "src", "index.js")
	require.NoError(t, os.WriteFile(file, []byte("//"), 0o644))

	_, projectDir, err := Discover(file)
	require.NoError(t, err)
	assert.Equal(t, dir, projectDir)
}

func TestDiscover_PrefersJSON(t *testing.T) {
	dir := writeProject(t, FileNameJSON, `{"name": "from-json", "srcDir": "src"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileNameYAML), []byte("name: from-yaml\nsrcDir: src\n"), 0o644))

	cfg, _, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-json", cfg.Name)
}

func TestDiscover_NotFound(t *testing.T) {
	_, _, err := Discover(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiscover_MissingStart(t *testing.T) {
	_, _, err := Discover("/nonexistent/start/12345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving")
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	dir := writeProject(t, FileNameJSON, "{}")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{Name: "p", SrcDir: "src"}, ""},
		{"valid with version", Config{Name: "p", SrcDir: "src", PlatformVersion: "1.2.3"}, ""},
		{"missing name", Config{SrcDir: "src"}, "invalid project config"},
		{"missing srcDir", Config{Name: "p"}, "invalid project config"},
		{"empty component", Config{Name: "p", SrcDir: "src", Components: []string{""}}, "invalid project config"},
		{"bad version", Config{Name: "p", SrcDir: "src", PlatformVersion: "not-a-version"}, "invalid platformVersion"},
		{"escapes project", Config{Name: "p", SrcDir: "../elsewhere"}, "inside the project directory"},
		{"missing dir", Config{Name: "p", SrcDir: "nope"}, "srcDir"},
		{"not a dir", Config{Name: "p", SrcDir: "file.txt"}, "not a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(dir)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

// ---------------------------------------------------------------------------
// HasComponent / SourcePath
// ---------------------------------------------------------------------------

func TestHasComponent(t *testing.T) {
	all := &Config{}
	assert.True(t, all.HasComponent("app"))
	assert.True(t, all.HasComponent("js"))

	some := &Config{Components: []string{"js"}}
	assert.False(t, some.HasComponent("app"))
	assert.True(t, some.HasComponent("js"))
}

func TestSourcePath(t *testing.T) {
	cfg := &Config{SrcDir: "src/main"}
	assert.Equal(t, filepath.Join("/proj", "src", "main"), cfg.SourcePath("/proj"))
}
