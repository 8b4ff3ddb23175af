// Package merkez holds the listing records (teachers and institutes) served by the public API.
// Option fields are closed enumerations, checked once when a record is decoded.
package merkez

import (
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/facet"
)

type Merkez struct {
	ID          int          `json:"id" validate:"required"`
	Kind        Kind         `json:"type" validate:"required,enum"`
	Name        string       `json:"nom" validate:"required"`
	Image       null.String  `json:"image"`
	Subjects    []Subject    `json:"matieres" validate:"dive,enum"`
	Formats     []Format     `json:"formats" validate:"dive,enum"`
	ClassTypes  []ClassType  `json:"types_classe" validate:"dive,enum"`
	Levels      []Level      `json:"niveaux" validate:"dive,enum"`
	Languages   []Language   `json:"langues" validate:"dive,enum"`
	Audience    []Audience   `json:"publicCible" validate:"dive,enum"`
	PriceMin    null.Int     `json:"prixMin"`
	PriceMax    null.Int     `json:"prixMax"` // must not be below PriceMin
	Rating      null.Float64 `json:"noteMoyenne"`
	ReviewCount int          `json:"nombreAvis"`
	Students    int          `json:"nombreEleves"`
	Teachers    int          `json:"nombreProfesseurs"`
	Verified    bool         `json:"verifie"`
	FreeTrial   bool         `json:"premierCoursGratuit"`

	Presentation null.String `json:"presentationInstitut"`
	Methodology  null.String `json:"methodologie"`
	Curriculum   null.String `json:"cursus"`
	Programme    null.String `json:"programme"`
}

func (m *Merkez) normalize() {
	m.Name = core.CleanString(m.Name)
	m.Kind = Kind(normalize(string(m.Kind)))
	for i := range m.Subjects {
		m.Subjects[i] = Subject(normalize(string(m.Subjects[i])))
	}
	for i := range m.Formats {
		m.Formats[i] = Format(normalize(string(m.Formats[i])))
	}
	for i := range m.ClassTypes {
		m.ClassTypes[i] = ClassType(normalize(string(m.ClassTypes[i])))
	}
	for i := range m.Levels {
		m.Levels[i] = Level(normalize(string(m.Levels[i])))
	}
	for i := range m.Languages {
		m.Languages[i] = Language(normalize(string(m.Languages[i])))
	}
	for i := range m.Audience {
		m.Audience[i] = Audience(normalize(string(m.Audience[i])))
	}
}

// Options returns the record's option values per facet key.
func (m Merkez) Options() map[string][]string {
	opts := map[string][]string{
		FacetKind: {string(m.Kind)},
	}
	add := func(key, v string) { opts[key] = append(opts[key], v) }
	for _, v := range m.Subjects {
		add(FacetSubject, string(v))
	}
	for _, v := range m.Formats {
		add(FacetFormat, string(v))
	}
	for _, v := range m.ClassTypes {
		add(FacetClassType, string(v))
	}
	for _, v := range m.Levels {
		add(FacetLevel, string(v))
	}
	for _, v := range m.Languages {
		add(FacetLanguage, string(v))
	}
	for _, v := range m.Audience {
		add(FacetAudience, string(v))
	}
	return opts
}

// Matches reports whether the record satisfies the selection:
// any selected value of a facet matches (OR), and every selected facet must match (AND).
// Facets the record doesn't carry never match.
func (m Merkez) Matches(sel facet.State) bool {
	opts := m.Options()
	for key, values := range sel {
		if !anyOf(opts[key], values) {
			return false
		}
	}
	return true
}

func anyOf(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
