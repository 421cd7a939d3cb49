// Package types provides type definitions for structured data used throughout the cv-publisher system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Collection bounds enforced by Document.Validate.
const (
	MaxExperiences = 10
	MaxEducation   = 5
	MaxSocials     = 15
)

// DefaultTemplate is the template used when a document does not name one.
const DefaultTemplate = "minimal"

// Document is the validated in-memory representation of a CV.
// Its JSON encoding is the cv-data.json snapshot published next to index.html.
type Document struct {
	GeneralInfo GeneralInfo    `json:"generalInfo" yaml:"generalInfo"`
	Experience  ExperienceData `json:"experience" yaml:"experience"`
	Education   EducationData  `json:"education" yaml:"education"`
	Socials     SocialsData    `json:"socials" yaml:"socials"`
	Analytics   Analytics      `json:"analytics" yaml:"analytics"`
	Template    string         `json:"template" yaml:"template" validate:"required,templatekey"`
}

// GeneralInfo holds the profile header of a CV.
type GeneralInfo struct {
	FullName          string   `json:"fullName" yaml:"fullName" validate:"required,max=100"`
	ProfessionalTitle string   `json:"professionalTitle" yaml:"professionalTitle" validate:"required,max=100"`
	Website           string   `json:"website,omitempty" yaml:"website,omitempty" validate:"omitempty,url"`
	About             RichText `json:"about,omitempty" yaml:"about,omitempty" validate:"richtext"`
	// Photo is either an inline data URL, an absolute URL of a previously
	// published photo, or a bundle-relative path such as "./profile-photo-1.webp".
	Photo string `json:"photo,omitempty" yaml:"photo,omitempty"`
}

// ExperienceData wraps the work experience list.
type ExperienceData struct {
	Experiences []ExperienceItem `json:"experiences" yaml:"experiences" validate:"max=10,dive"`
}

// ExperienceItem is a single position held.
type ExperienceItem struct {
	Company     string    `json:"company" yaml:"company" validate:"required,max=100"`
	Position    string    `json:"position" yaml:"position" validate:"required,max=100"`
	Website     string    `json:"website" yaml:"website" validate:"omitempty,url"`
	Dates       DateRange `json:"dates" yaml:"dates"`
	Location    string    `json:"location" yaml:"location" validate:"required,max=100"`
	Description RichText  `json:"description,omitempty" yaml:"description,omitempty" validate:"richtext"`
}

// EducationData wraps the education list.
type EducationData struct {
	Education []EducationItem `json:"education" yaml:"education" validate:"max=5,dive"`
}

// EducationItem is a single degree or course of study.
type EducationItem struct {
	Institution string    `json:"institution" yaml:"institution" validate:"required,max=100"`
	Degree      string    `json:"degree" yaml:"degree" validate:"required,max=100"`
	Location    string    `json:"location" yaml:"location" validate:"required,max=100"`
	Dates       DateRange `json:"dates" yaml:"dates"`
	Description RichText  `json:"description,omitempty" yaml:"description,omitempty" validate:"richtext"`
}

// SocialsData wraps the social link list.
type SocialsData struct {
	Socials []SocialItem `json:"socials" yaml:"socials" validate:"max=15,dive"`
}

// SocialItem is a named link to a profile on another platform.
type SocialItem struct {
	ID   string `json:"id" yaml:"id" validate:"required"`
	Name string `json:"name" yaml:"name" validate:"required,max=50"`
	URL  string `json:"url" yaml:"url" validate:"required,url"`
}

// DateRange is a month-granular period. EndDate is ignored when Current is set.
type DateRange struct {
	Current   bool   `json:"current" yaml:"current"`
	StartDate string `json:"startDate" yaml:"startDate"`
	EndDate   string `json:"endDate,omitempty" yaml:"endDate,omitempty"`
}

var (
	yearMonthPattern   = regexp.MustCompile(`^\d{4}-\d{2}$`)
	templateKeyPattern = regexp.MustCompile(`^[a-z-]+$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

func documentValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("templatekey", func(fl validator.FieldLevel) bool {
			return templateKeyPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("richtext", func(fl validator.FieldLevel) bool {
			content, ok := fl.Field().Interface().(RichText)
			if !ok {
				return false
			}
			n := len([]rune(content.PlainText()))
			return n == 0 || (n >= 10 && n <= 1000)
		})
		v.RegisterStructValidation(validateDateRange, DateRange{})
		v.RegisterStructValidation(validateAnalytics, Analytics{})
		validate = v
	})
	return validate
}

func validateDateRange(sl validator.StructLevel) {
	dates := sl.Current().Interface().(DateRange)
	if !yearMonthPattern.MatchString(dates.StartDate) {
		sl.ReportError(dates.StartDate, "StartDate", "startDate", "yearmonth", "")
	}
	if !dates.Current && !yearMonthPattern.MatchString(dates.EndDate) {
		sl.ReportError(dates.EndDate, "EndDate", "endDate", "yearmonth", "")
	}
}

func validateAnalytics(sl validator.StructLevel) {
	a := sl.Current().Interface().(Analytics)
	if err := a.Check(); err != nil {
		sl.ReportError(a.Type, "Type", "type", "analytics", string(a.Type))
	}
}

// Validate checks the document against the collection bounds, field formats
// and the analytics variant invariant.
func (d *Document) Validate() error {
	return documentValidator().Struct(d)
}

// Clone returns a deep copy of the document so callers can rewrite fields
// (for example the photo path) without touching the caller's value.
func (d *Document) Clone() *Document {
	out := *d
	out.GeneralInfo.About = d.GeneralInfo.About.Clone()
	if d.Experience.Experiences != nil {
		out.Experience.Experiences = make([]ExperienceItem, len(d.Experience.Experiences))
		for i, exp := range d.Experience.Experiences {
			exp.Description = exp.Description.Clone()
			out.Experience.Experiences[i] = exp
		}
	}
	if d.Education.Education != nil {
		out.Education.Education = make([]EducationItem, len(d.Education.Education))
		for i, edu := range d.Education.Education {
			edu.Description = edu.Description.Clone()
			out.Education.Education[i] = edu
		}
	}
	if d.Socials.Socials != nil {
		out.Socials.Socials = append([]SocialItem(nil), d.Socials.Socials...)
	}
	return &out
}

// TemplateKey returns the document's template, falling back to DefaultTemplate.
func (d *Document) TemplateKey() string {
	if d.Template == "" {
		return DefaultTemplate
	}
	return d.Template
}

// DateRanges returns the date ranges of every experience entry in order.
func (d *Document) DateRanges() []DateRange {
	ranges := make([]DateRange, 0, len(d.Experience.Experiences))
	for _, exp := range d.Experience.Experiences {
		ranges = append(ranges, exp.Dates)
	}
	return ranges
}
