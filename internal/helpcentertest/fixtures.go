// Package helpcentertest serves a fake Help Center REST API from fixtures.
package helpcentertest

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures are the objects the fake Help Center serves.
type Fixtures struct {
	Locale       string           `yaml:"locale"`
	Articles     []map[string]any `yaml:"articles"`
	Sections     []map[string]any `yaml:"sections"`
	Categories   []map[string]any `yaml:"categories"`
	Posts        []map[string]any `yaml:"posts"`
	Topics       []map[string]any `yaml:"topics"`
	Users        []map[string]any `yaml:"users"`
	Translations []map[string]any `yaml:"translations"`
	// Assets maps file names under /assets/ to their contents.
	Assets map[string]string `yaml:"assets"`
}

// Objects returns the fixtures of one type.
func (f *Fixtures) Objects(typ string) ([]map[string]any, bool) {
	switch typ {
	case "articles":
		return f.Articles, true
	case "sections":
		return f.Sections, true
	case "categories":
		return f.Categories, true
	case "posts":
		return f.Posts, true
	case "topics":
		return f.Topics, true
	case "users":
		return f.Users, true
	case "translations":
		return f.Translations, true
	}
	return nil, false
}

// ParseFixtures decodes YAML fixtures.
func ParseFixtures(b []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if f.Locale == "" {
		f.Locale = "en-us"
	}
	return &f, nil
}

// LoadFixtures reads YAML fixtures from path.
func LoadFixtures(path string) (*Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(b)
}

// DefaultFixtures returns a small Help Center with two categories, nested
// sections, a draft article and community content.
func DefaultFixtures() *Fixtures {
	f, err := ParseFixtures(defaultFixtures)
	if err != nil {
		panic(err)
	}
	return f
}
