package categories

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var catalogYAML []byte

// Category describes one leaderboard the contract sorts submissions into.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Emoji       string `yaml:"emoji" json:"emoji"`
	Description string `yaml:"description" json:"description"`
	Hero        Hero   `yaml:"hero" json:"hero"`
	CTA         CTA    `yaml:"cta" json:"cta"`
	Next        string `yaml:"next" json:"next"`
}

type Hero struct {
	Title    string `yaml:"title" json:"title"`
	Subtitle string `yaml:"subtitle" json:"subtitle"`
	Image    string `yaml:"image" json:"image"`
}

type CTA struct {
	Heading     string `yaml:"heading" json:"heading"`
	Description string `yaml:"description" json:"description"`
	Button      string `yaml:"button" json:"button"`
}

// Catalog is the parsed categories file.
type Catalog struct {
	Default    string     `yaml:"default"`
	CatchAll   string     `yaml:"catchall"`
	Categories []Category `yaml:"categories"`

	byID map[string]Category
}

var (
	loadOnce sync.Once
	catalog  *Catalog
	loadErr  error
)

// Parse reads a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse categories: %w", err)
	}
	if len(c.Categories) == 0 {
		return nil, fmt.Errorf("categories file lists no categories")
	}

	c.byID = make(map[string]Category, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.ID == "" {
			return nil, fmt.Errorf("category with empty id")
		}
		c.byID[cat.ID] = cat
	}
	if _, ok := c.byID[c.Default]; !ok {
		return nil, fmt.Errorf("default category %q is not defined", c.Default)
	}
	return &c, nil
}

func load() *Catalog {
	loadOnce.Do(func() {
		catalog, loadErr = Parse(catalogYAML)
	})
	if loadErr != nil {
		// The file is embedded at build time; a parse failure is a build defect.
		panic(loadErr)
	}
	return catalog
}

// All returns categories in display order.
func All() []Category {
	c := load()
	out := make([]Category, len(c.Categories))
	copy(out, c.Categories)
	return out
}

// Lookup returns the category for id. Unknown ids resolve to the default
// category, mirroring how the site themes unknown pages.
func Lookup(id string) Category {
	c := load()
	if cat, ok := c.byID[id]; ok {
		return cat
	}
	return c.byID[c.Default]
}

// Valid reports whether id names a known category.
func Valid(id string) bool {
	_, ok := load().byID[id]
	return ok
}

// Default is the fallback category id.
func Default() string {
	return load().Default
}

// CatchAll is the category the contract files unmatched images under.
func CatchAll() string {
	return load().CatchAll
}

// Titleize turns "easter_eggs" into "Easter Eggs".
func Titleize(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
