package facet

import (
	_ "embed"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// suggestMinRatio is the similarity under which Suggest gives up.
const suggestMinRatio = .6

type (
	CatalogOption struct {
		Option `yaml:",inline"`
		Label  string `json:"label" yaml:"label"`
	}

	Section struct {
		ID      string          `json:"id" yaml:"id"`
		Title   string          `json:"title" yaml:"title"`
		Options []CatalogOption `json:"options" yaml:"options"`
	}

	// Catalog lists the facets and options offered by the listing views.
	// The Filter never checks values against it.
	Catalog struct {
		Sections []Section `json:"sections" yaml:"sections"`
	}
)

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	cat := new(Catalog)
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, errors.Wrap(err, "parsing facet catalog")
	}
	for i := range cat.Sections {
		sec := &cat.Sections[i]
		if sec.ID == "" {
			return nil, errors.Errorf("facet catalog: section %d has no id", i)
		}
		for j := range sec.Options {
			sec.Options[j].Key = sec.ID
		}
	}
	return cat, nil
}

func (cat *Catalog) Section(key string) (Section, bool) {
	for _, sec := range cat.Sections {
		if sec.ID == key {
			return sec, true
		}
	}
	return Section{}, false
}

// Knows reports whether `value` is a catalog option of facet `key`.
func (cat *Catalog) Knows(key, value string) bool {
	sec, ok := cat.Section(key)
	if !ok {
		return false
	}
	for _, opt := range sec.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Suggest returns the catalog option of facet `key` closest to `value`,
// e.g. "en_ligne" -> "en-ligne". ok is false when the facet is unknown or nothing is close enough.
func (cat *Catalog) Suggest(key, value string) (opt CatalogOption, ok bool) {
	sec, found := cat.Section(key)
	if !found {
		return CatalogOption{}, false
	}

	value = strings.ToLower(value)
	var best float64
	for _, o := range sec.Options {
		ratio := difflib.NewMatcher(strings.Split(value, ""), strings.Split(o.Value, "")).Ratio()
		if ratio > best {
			best = ratio
			opt = o
		}
	}
	if best < suggestMinRatio {
		return CatalogOption{}, false
	}
	return opt, true
}
