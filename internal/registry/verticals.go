// Package registry loads the curated vertical seed lists used by the
// discovery stage. Seeds let discovery produce candidates even when the ad
// library's page search is unavailable or rate limited.
package registry

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/adintel-cli/internal/model"
)

// SeedBrand is one curated competitor entry in a vertical seed list.
type SeedBrand struct {
	Name   string `yaml:"name"`
	PageID string `yaml:"page_id,omitempty"`
}

// Vertical groups the seed brands for one advertising vertical.
type Vertical struct {
	Brands []SeedBrand `yaml:"brands"`
}

// Registry holds every configured vertical, keyed by normalized name.
type Registry struct {
	Verticals map[string]Vertical `yaml:"verticals"`
}

// Load parses a vertical seed registry from a YAML file. A missing file is
// not an error: discovery then relies on page search alone.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{Verticals: map[string]Vertical{}}, nil
		}
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}
	if reg.Verticals == nil {
		reg.Verticals = map[string]Vertical{}
	}
	return &reg, nil
}

// SeedBrands returns the seed competitors for a vertical as model brands.
// Vertical lookup is case-insensitive with spaces treated as underscores.
func (r *Registry) SeedBrands(vertical string) []model.Brand {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(vertical), " ", "_"))
	v, ok := r.Verticals[key]
	if !ok {
		return nil
	}
	brands := make([]model.Brand, 0, len(v.Brands))
	for _, s := range v.Brands {
		brands = append(brands, model.Brand{
			Name:   s.Name,
			PageID: s.PageID,
			Source: "registry",
		})
	}
	return brands
}
