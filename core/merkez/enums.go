package merkez

import "github.com/maraakiz/portal/core"

// Facet keys, as used in listing query parameters.
const (
	FacetKind      = "type"
	FacetSubject   = "matiere"
	FacetFormat    = "format"
	FacetClassType = "type_classe"
	FacetLevel     = "niveau"
	FacetLanguage  = "langue"
	FacetAudience  = "public"
)

type Kind string

const (
	KindTeacher   Kind = "professeur"
	KindInstitute Kind = "institut"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTeacher, KindInstitute:
		return true
	}
	return false
}

type Subject string

const (
	SubjectQuran    Subject = "coran"
	SubjectArabic   Subject = "arabe"
	SubjectTajwid   Subject = "tajwid"
	SubjectSciences Subject = "sciences"
)

func (s Subject) Valid() bool {
	switch s {
	case SubjectQuran, SubjectArabic, SubjectTajwid, SubjectSciences:
		return true
	}
	return false
}

type Format string

const (
	FormatOnline   Format = "en-ligne"
	FormatOnSite   Format = "presentiel"
	FormatRecorded Format = "en-differe"
)

func (f Format) Valid() bool {
	switch f {
	case FormatOnline, FormatOnSite, FormatRecorded:
		return true
	}
	return false
}

type ClassType string

const (
	ClassSolo  ClassType = "seul"
	ClassPair  ClassType = "binome"
	ClassGroup ClassType = "groupes"
)

func (c ClassType) Valid() bool {
	switch c {
	case ClassSolo, ClassPair, ClassGroup:
		return true
	}
	return false
}

type Level string

const (
	LevelBeginner     Level = "debutant"
	LevelIntermediate Level = "intermediaire"
	LevelAdvanced     Level = "avance"
)

func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

type Language string

const (
	LanguageFrench  Language = "francais"
	LanguageArabic  Language = "arabe"
	LanguageEnglish Language = "anglais"
)

func (l Language) Valid() bool {
	switch l {
	case LanguageFrench, LanguageArabic, LanguageEnglish:
		return true
	}
	return false
}

type Audience string

const (
	AudienceMen   Audience = "homme"
	AudienceWomen Audience = "femme"
	AudienceBoys  Audience = "garcon"
	AudienceGirls Audience = "fille"
)

func (a Audience) Valid() bool {
	switch a {
	case AudienceMen, AudienceWomen, AudienceBoys, AudienceGirls:
		return true
	}
	return false
}

// spellings the upstream has used for the same option
var aliases = map[string]string{
	"en_ligne":      "en-ligne",
	"enligne":       "en-ligne",
	"en_presentiel": "presentiel",
	"en_differe":    "en-differe",
	"individuel":    "seul",
	"groupe":        "groupes",
	"francophone":   "francais",
	"arabophone":    "arabe",
	"anglophone":    "anglais",
	"hommes":        "homme",
	"femmes":        "femme",
	"garcons":       "garcon",
	"filles":        "fille",
}

// normalize maps an upstream option spelling to its enum value.
// Unknown values are returned cleaned but otherwise untouched, so validation can reject them.
func normalize(s string) string {
	s = core.FoldKey(s)
	if alias, ok := aliases[s]; ok {
		return alias
	}
	return s
}
