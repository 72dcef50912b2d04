package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"agentsim/pkg/platform/sentinel"
)

//go:embed catalog/*.yaml
var embeddedCatalogFS embed.FS

// Decode parses one YAML scenario and validates it. Unknown fields are
// rejected so typos in hand-written scenarios surface early.
func Decode(r io.Reader) (Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Scenario{}, fmt.Errorf("empty scenario: %w", sentinel.ErrInvalidInput)
		}
		return Scenario{}, fmt.Errorf("parse scenario: %w: %w", sentinel.ErrInvalidInput, err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// LoadFile reads a scenario from a YAML file.
func LoadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("load scenario %s: %w", path, err)
	}
	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Scenario{}, fmt.Errorf("load scenario %s: %w", path, err)
	}
	return s, nil
}

// Catalog is a set of scenarios addressable by id.
type Catalog struct {
	byID map[string]Scenario
	ids  []string
}

// LoadEmbedded loads the built-in scenarios.
func LoadEmbedded() (*Catalog, error) {
	return LoadFromFS(embeddedCatalogFS, "catalog")
}

// LoadDir loads every *.yaml scenario in dir.
func LoadDir(dir string) (*Catalog, error) {
	return LoadFromFS(os.DirFS(dir), ".")
}

// LoadFromFS loads every *.yaml scenario under root in fsys.
func LoadFromFS(fsys fs.FS, root string) (*Catalog, error) {
	paths, err := fs.Glob(fsys, filepath.ToSlash(filepath.Join(root, "*.yaml")))
	if err != nil {
		return nil, fmt.Errorf("glob scenarios: %w", err)
	}
	sort.Strings(paths)

	c := &Catalog{byID: make(map[string]Scenario)}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read scenario %s: %w", path, err)
		}
		s, err := Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", path, err)
		}
		if err := c.Add(s); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", path, err)
		}
	}
	return c, nil
}

// Merge returns a catalog holding c's scenarios plus other's; other wins on
// duplicate ids.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	out := &Catalog{byID: make(map[string]Scenario)}
	for _, src := range []*Catalog{c, other} {
		if src == nil {
			continue
		}
		for _, id := range src.ids {
			if _, ok := out.byID[id]; !ok {
				out.ids = append(out.ids, id)
			}
			out.byID[id] = src.byID[id]
		}
	}
	return out
}

// Add registers s. Ids must be unique.
func (c *Catalog) Add(s Scenario) error {
	if _, ok := c.byID[s.ID]; ok {
		return fmt.Errorf("duplicate scenario %s: %w", s.ID, sentinel.ErrConflict)
	}
	c.byID[s.ID] = s
	c.ids = append(c.ids, s.ID)
	return nil
}

func (c *Catalog) Get(id string) (Scenario, bool) {
	s, ok := c.byID[strings.TrimSpace(id)]
	return s, ok
}

// All returns every scenario in load order.
func (c *Catalog) All() []Scenario {
	out := make([]Scenario, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) ByDifficulty(d Difficulty) []Scenario {
	var out []Scenario
	for _, s := range c.All() {
		if s.Difficulty == d {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) IDs() []string {
	return slices.Clone(c.ids)
}
