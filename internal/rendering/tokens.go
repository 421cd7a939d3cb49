package rendering

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractClassTokens returns every class name used in markup, deduplicated
// and sorted.
func ExtractClassTokens(markup string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	tokens := []string{}
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		classes, _ := s.Attr("class")
		for _, token := range strings.Fields(classes) {
			if !seen[token] {
				seen[token] = true
				tokens = append(tokens, token)
			}
		}
	})
	sort.Strings(tokens)
	return tokens, nil
}
