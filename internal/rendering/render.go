package rendering

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/jonathan/cv-publisher/internal/logfields"
	"github.com/jonathan/cv-publisher/internal/naming"
	"github.com/jonathan/cv-publisher/internal/styles"
	"github.com/jonathan/cv-publisher/internal/types"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// Generator is written to the generator meta tag of every page.
const Generator = "QuickCV 1.0"

// TemplateInfo describes a registered visual template.
type TemplateInfo struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// registry lists the templates defined in templates/*.gohtml.
var registry = []TemplateInfo{
	{Key: "minimal", Name: "Minimal"},
	{Key: "modern", Name: "Modern"},
	{Key: "professional", Name: "Professional"},
}

// Templates returns the registered templates in display order.
func Templates() []TemplateInfo {
	return append([]TemplateInfo(nil), registry...)
}

// IsRegistered reports whether key names a registered template.
func IsRegistered(key string) bool {
	for _, t := range registry {
		if t.Key == key {
			return true
		}
	}
	return false
}

// TemplateKeys returns the registered template keys in display order.
func TemplateKeys() []string {
	keys := make([]string, len(registry))
	for i, t := range registry {
		keys[i] = t.Key
	}
	return keys
}

// Output is a rendered page.
type Output struct {
	HTML string
	// Tokens are the class tokens found in the page, sorted and deduplicated.
	Tokens []string
	// CSS is the stylesheet inlined into HTML.
	CSS string
	// UnknownTokens are tokens the style compiler had no rule for.
	UnknownTokens []string
	// Markers are selector hooks such as "group" that need no rule.
	Markers []string
}

// PageOptions tweaks a single render.
type PageOptions struct {
	// PDFFile adds a download link to the named bundle entry when set.
	PDFFile string
}

// Renderer renders documents with the embedded templates.
type Renderer struct {
	tmpl     *template.Template
	compiler *styles.Compiler
	now      func() time.Time
	darkMode bool
	logger   *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock sets the clock used for "Now" in date ranges. Tests pin it so
// output is byte-identical across runs.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

// WithDarkMode makes dark: utilities follow prefers-color-scheme instead of
// the data-theme attribute.
func WithDarkMode(enabled bool) Option {
	return func(r *Renderer) { r.darkMode = enabled }
}

// New parses the embedded templates.
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.compiler = styles.NewCompiler(r.logger)

	tmpl, err := template.New("cv").Funcs(template.FuncMap{
		"dateRange":   FormatDateRange,
		"photoURL":    photoURL,
		"stripScheme": stripScheme,
		"section": func(title, subtitle string) map[string]string {
			return map[string]string{"Title": title, "Subtitle": subtitle}
		},
	}).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, &TemplateError{
			Message: "failed to parse embedded templates",
			Cause:   err,
		}
	}
	for _, key := range TemplateKeys() {
		if tmpl.Lookup(key) == nil {
			return nil, &TemplateError{Message: "registered template " + key + " is not defined"}
		}
	}
	r.tmpl = tmpl
	return r, nil
}

// view is the data passed to a body template.
type view struct {
	General     types.GeneralInfo
	Experiences []types.ExperienceItem
	Education   []types.EducationItem
	Socials     []types.SocialItem
	TotalYears  string
	PDFFile     string
}

// page is the data passed to the page shell.
type page struct {
	TemplateKey string
	Generator   string
	Title       string
	CSS         template.CSS
	Analytics   types.Analytics
	Body        template.HTML
}

// Render renders doc with the template registered under templateKey.
func (r *Renderer) Render(doc *types.Document, templateKey string) (*Output, error) {
	return r.RenderPage(doc, templateKey, PageOptions{})
}

// RenderPage renders doc, extracts the class tokens of the resulting markup,
// compiles them and inlines the stylesheet.
func (r *Renderer) RenderPage(doc *types.Document, templateKey string, opts PageOptions) (*Output, error) {
	if templateKey == "" {
		templateKey = doc.TemplateKey()
	}
	if !IsRegistered(templateKey) {
		return nil, &UnknownTemplateError{Key: templateKey, Available: TemplateKeys()}
	}

	v := view{
		General:     doc.GeneralInfo,
		Experiences: doc.Experience.Experiences,
		Education:   doc.Education.Education,
		Socials:     doc.Socials.Socials,
		TotalYears:  TotalYears(doc.DateRanges(), r.now()),
		PDFFile:     opts.PDFFile,
	}

	var body bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&body, templateKey, v); err != nil {
		return nil, &TemplateError{
			Message: "failed to execute template " + templateKey,
			Cause:   err,
		}
	}

	p := page{
		TemplateKey: templateKey,
		Generator:   Generator,
		Title:       doc.GeneralInfo.FullName + " - Portfolio",
		Analytics:   doc.Analytics,
		Body:        template.HTML(body.String()), //nolint:gosec // produced by html/template above
	}

	// first pass without styles to discover the tokens
	unstyled, err := r.executePage(p)
	if err != nil {
		return nil, err
	}
	tokens, err := ExtractClassTokens(unstyled)
	if err != nil {
		return nil, &RenderError{Message: "failed to scan class tokens", Cause: err}
	}

	compiled := r.compiler.Compile(tokens, styles.Options{Minify: true, DarkMode: r.darkMode})
	if len(compiled.Unknown) > 0 {
		r.logger.Warn("Template uses classes without a utility rule",
			logfields.Template(templateKey),
			slog.Any("tokens", compiled.Unknown))
	}

	p.CSS = template.CSS(compiled.CSS) //nolint:gosec // generated from the static utility tables
	html, err := r.executePage(p)
	if err != nil {
		return nil, err
	}

	return &Output{
		HTML:          html,
		Tokens:        tokens,
		CSS:           compiled.CSS,
		UnknownTokens: compiled.Unknown,
		Markers:       compiled.Markers,
	}, nil
}

func (r *Renderer) executePage(p page) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "page", p); err != nil {
		return "", &TemplateError{Message: "failed to execute page shell", Cause: err}
	}
	return buf.String(), nil
}

// PDFFilename returns the bundle name of the PDF rendering of doc.
func PDFFilename(doc *types.Document) string {
	return naming.PDFFilename(doc.GeneralInfo.FullName, "cv")
}

// photoURL lets inline image data through the URL sanitizer; every other
// value is filtered as a normal URL.
func photoURL(src string) any {
	if strings.HasPrefix(src, "data:image/") {
		return template.URL(src) //nolint:gosec // image data URLs only
	}
	return src
}

func stripScheme(u string) string {
	u = strings.TrimPrefix(u, "https://")
	return strings.TrimPrefix(u, "http://")
}
