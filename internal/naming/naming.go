// Package naming produces the deterministic, filesystem- and URL-safe names
// used for bundle entries and provider projects.
package naming

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jonathan/cv-publisher/internal/types"
)

// SanitizeOptions configures Sanitize.
type SanitizeOptions struct {
	// Separator replaces runs of whitespace. Defaults to "-".
	Separator string
	// MaxLength truncates the result when positive.
	MaxLength int
	// Fallback is returned when the input sanitizes to nothing.
	Fallback string
	// KeepCase disables lowercasing.
	KeepCase bool
}

// Sanitize turns arbitrary text into a slug: accents stripped, lowercased,
// anything outside [a-zA-Z0-9 -] removed and whitespace collapsed into the
// separator.
//
//	Sanitize("José María García-López", SanitizeOptions{}) == "jose-maria-garcia-lopez"
func Sanitize(input string, opts SanitizeOptions) string {
	sep := opts.Separator
	if sep == "" {
		sep = "-"
	}

	result := strings.TrimSpace(input)
	if result == "" {
		return opts.Fallback
	}

	result = stripAccents(result)
	if !opts.KeepCase {
		result = strings.ToLower(result)
	}

	var sb strings.Builder
	pendingSep := false
	for _, r := range result {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingSep && sb.Len() > 0 {
				sb.WriteString(sep)
			}
			pendingSep = false
			sb.WriteRune(r)
		case unicode.IsSpace(r) || string(r) == sep || r == '-':
			pendingSep = true
		}
	}
	result = sb.String()

	if opts.MaxLength > 0 && len(result) > opts.MaxLength {
		result = strings.TrimRight(result[:opts.MaxLength], sep)
	}

	if result == "" {
		return opts.Fallback
	}
	return result
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// PDFFilename returns "{sanitized name}.pdf", using fallback for empty names.
func PDFFilename(fullName, fallback string) string {
	if fallback == "" {
		fallback = "document"
	}
	return Sanitize(fullName, SanitizeOptions{Fallback: fallback}) + types.PDFExtension
}

// Slug returns a URL slug limited to maxLength characters.
func Slug(input string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 50
	}
	return Sanitize(input, SanitizeOptions{MaxLength: maxLength, Fallback: "untitled"})
}

// ProjectName returns a provider-safe project name, prefixed with prefix
// unless it already starts with it.
func ProjectName(input, prefix string) string {
	name := Sanitize(input, SanitizeOptions{Fallback: "my-project"})
	if prefix == "" || strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + "-" + name
}

// Stamper hands out strictly increasing millisecond stamps. Two calls never
// return the same value, even within the same millisecond.
type Stamper struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewStamper creates a Stamper using the given clock (time.Now when nil).
func NewStamper(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{now: now}
}

// Next returns the next stamp.
func (s *Stamper) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UnixMilli()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

// PhotoFilename returns "profile-photo-{stamp}.webp".
func PhotoFilename(stamp int64) string {
	return fmt.Sprintf("%s%d%s", types.PhotoPrefix, stamp, types.PhotoSuffix)
}

// RelativePath returns the bundle-relative reference "./{name}".
func RelativePath(name string) string {
	return "./" + name
}

// BuildPhotoURL joins a deployment URL and a bundle-relative photo path into
// an absolute URL. An empty path falls back to "profile-photo.webp".
func BuildPhotoURL(deploymentURL, photoPath string) string {
	if photoPath == "" {
		photoPath = "profile-photo.webp"
	}
	clean := strings.TrimPrefix(photoPath, "./")
	clean = strings.TrimPrefix(clean, ".")
	clean = strings.TrimPrefix(clean, "/")
	return strings.TrimSuffix(deploymentURL, "/") + "/" + clean
}
