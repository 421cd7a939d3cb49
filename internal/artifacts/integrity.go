package artifacts

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/cv-publisher/internal/schemas"
	"github.com/jonathan/cv-publisher/internal/types"
)

// VerifyBundle checks that index.html and cv-data.json are present, that
// every bundle-relative file they reference is in the bundle, and that the
// snapshot and upload manifest match their schemas.
func VerifyBundle(bundle *types.Bundle) error {
	var missing []string
	for _, required := range []string{types.IndexFile, types.CVDataFile} {
		if !bundle.Has(required) {
			missing = append(missing, "bundle -> "+required)
		}
	}
	if len(missing) > 0 {
		return &IntegrityError{Missing: missing}
	}

	index, _ := bundle.Get(types.IndexFile)
	refs, err := htmlReferences(index.Content)
	if err != nil {
		return &BuildError{Message: "failed to parse " + types.IndexFile, Cause: err}
	}
	for _, ref := range refs {
		if !bundle.Has(ref) {
			missing = append(missing, types.IndexFile+" -> "+ref)
		}
	}

	snapshot, _ := bundle.Get(types.CVDataFile)
	if err := schemas.ValidateDocumentJSON([]byte(snapshot.Content)); err != nil {
		return &BuildError{Message: types.CVDataFile + " does not match the document schema", Cause: err}
	}
	var doc types.Document
	if err := json.Unmarshal([]byte(snapshot.Content), &doc); err != nil {
		return &BuildError{Message: "failed to parse " + types.CVDataFile, Cause: err}
	}
	if ref, ok := localReference(doc.GeneralInfo.Photo); ok && !bundle.Has(ref) {
		missing = append(missing, types.CVDataFile+" -> "+ref)
	}

	if len(missing) > 0 {
		return &IntegrityError{Missing: missing}
	}

	if err := schemas.ValidateManifest(bundle.Manifest()); err != nil {
		return &BuildError{Message: "upload manifest does not match its schema", Cause: err}
	}
	return nil
}

// htmlReferences returns the bundle files the page points at: image sources,
// download links and any "./" relative attribute.
func htmlReferences(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	add := func(value string, always bool) {
		ref, ok := localReference(value)
		if !ok || (!always && !strings.HasPrefix(value, "./")) {
			return
		}
		seen[ref] = true
	}
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("src", ""), true)
	})
	doc.Find("a[download][href]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("href", ""), true)
	})
	doc.Find(`[href^="./"], [src^="./"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("href", ""), false)
		add(s.AttrOr("src", ""), false)
	})

	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs, nil
}

// localReference returns the bundle key a value points at. Absolute URLs,
// data URLs, fragments and root-relative paths are served by someone else.
func localReference(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.Contains(value, ":") ||
		strings.HasPrefix(value, "#") || strings.HasPrefix(value, "/") {
		return "", false
	}
	return strings.TrimPrefix(value, "./"), true
}
