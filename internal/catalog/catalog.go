// Package catalog holds the static tables behind the home and lens screens.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/frudas24/lensdeck/internal/crop"
	"gopkg.in/yaml.v3"
)

//go:embed default.yml
var defaultYAML []byte

// Result is one card on the lens results screen.
type Result struct {
	Type        string `yaml:"type" json:"type"`
	Title       string `yaml:"title" json:"title"`
	Image       string `yaml:"image" json:"image"`
	Description string `yaml:"description" json:"description"`
	URL         string `yaml:"url" json:"url"`
}

// Match is a row in the home screen schedule strip.
type Match struct {
	Title string `yaml:"title" json:"title"`
	Time  string `yaml:"time" json:"time"`
}

// QuickAction is a shortcut icon under the search bar.
type QuickAction struct {
	Icon  string `yaml:"icon" json:"icon"`
	Label string `yaml:"label" json:"label"`
	Color string `yaml:"color" json:"color"`
}

// Catalog is the full set of static tables.
type Catalog struct {
	Suggestions  map[string][]string `yaml:"suggestions"`
	Recent       []string            `yaml:"recent"`
	Schedule     []Match             `yaml:"schedule"`
	QuickActions []QuickAction       `yaml:"quick_actions"`
	Lens         map[string][]Result `yaml:"lens"`
}

// Default returns the embedded catalog.
func Default() (Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file. A missing file yields the embedded default.
func Load(path string) (Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default()
		}
		return Catalog{}, err
	}
	c, err := Parse(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks that every corner has a lens entry and keys are known.
func (c Catalog) Validate() error {
	for _, corner := range crop.Corners() {
		if _, ok := c.Lens[corner.String()]; !ok {
			return fmt.Errorf("lens results missing for %s", corner)
		}
	}
	for key := range c.Lens {
		if _, err := crop.ParseCorner(key); err != nil {
			return fmt.Errorf("lens results: %w", err)
		}
	}
	return nil
}

// ResultsFor returns a copy of the lens results for corner.
func (c Catalog) ResultsFor(corner crop.Corner) []Result {
	src := c.Lens[corner.String()]
	out := make([]Result, len(src))
	copy(out, src)
	return out
}

// SuggestionsFor returns a copy of the suggestions stored under key.
func (c Catalog) SuggestionsFor(key string) []string {
	src := c.Suggestions[key]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
