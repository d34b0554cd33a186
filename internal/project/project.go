// Package project discovers, parses and validates the devloop project file.
//
// A project is the directory holding a devloop.json (JSONC: comments and
// trailing commas allowed) or devloop.yaml file. Discovery walks up from a
// starting path to the nearest project file.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	sigsyaml "sigs.k8s.io/yaml"
)

// Project file names in lookup order.
const (
	FileNameJSON = "devloop.json"
	FileNameYAML = "devloop.yaml"
)

// ErrNotFound is returned by Discover when no project file exists between
// the starting path and the filesystem root.
var ErrNotFound = errors.New("project file not found")

var validate = validator.New()

// Config is the parsed project file.
type Config struct {
	// Name identifies the remote project.
	Name string `json:"name" validate:"required,max=100"`

	// SrcDir is the source directory relative to the project directory.
	// It is the directory uploaded when a change cannot be applied locally.
	SrcDir string `json:"srcDir" validate:"required"`

	// PlatformVersion optionally pins the remote platform version (semver).
	PlatformVersion string `json:"platformVersion,omitempty"`

	// Components lists the component types contained in the project.
	// Empty means every known component type is present.
	Components []string `json:"components,omitempty" validate:"dive,required"`
}

// HasComponent reports whether the project contains the given component type.
func (c *Config) HasComponent(componentType string) bool {
	if len(c.Components) == 0 {
		return true
	}

	return slices.Contains(c.Components, componentType)
}

// SourcePath returns the absolute source directory inside projectDir.
func (c *Config) SourcePath(projectDir string) string {
	return filepath.Join(projectDir, filepath.FromSlash(c.SrcDir))
}

// Validate checks the config fields and that SrcDir is an existing directory
// inside projectDir.
func (c *Config) Validate(projectDir string) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid project config: %w", err)
	}

	if c.PlatformVersion != "" {
		if _, err := semver.NewVersion(c.PlatformVersion); err != nil {
			return fmt.Errorf("invalid platformVersion %q: %w", c.PlatformVersion, err)
		}
	}

	src := c.SourcePath(projectDir)

	rel, err := filepath.Rel(projectDir, src)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("srcDir %q must be inside the project directory", c.SrcDir)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("srcDir %q: %w", c.SrcDir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("srcDir %q is not a directory", c.SrcDir)
	}

	return nil
}

// Discover walks up from start to the nearest directory containing a project
// file and returns the parsed config and the absolute project directory.
func Discover(start string) (*Config, string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, "", fmt.Errorf("resolving %q: %w", start, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, "", fmt.Errorf("resolving %q: %w", start, err)
	}

	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		for _, name := range []string{FileNameJSON, FileNameYAML} {
			p := filepath.Join(dir, name)
			if _, statErr := os.Stat(p); statErr == nil {
				cfg, loadErr := Load(p)
				if loadErr != nil {
					return nil, "", loadErr
				}

				return cfg, dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", fmt.Errorf("%w: no %s or %s in %s or any parent directory",
				ErrNotFound, FileNameJSON, FileNameYAML, abs)
		}

		dir = parent
	}
}

// Load parses a project file. The format follows the file extension:
// .yaml/.yml files are YAML, everything else is JSONC.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := sigsyaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		// Strip comments and trailing commas before parsing as standard JSON.
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	return &cfg, nil
}
