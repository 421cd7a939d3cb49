package styles

import (
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

const mediaType = "text/css"

var minifier = func() *minify.M {
	m := minify.New()
	m.Add(mediaType, &css.Minifier{})
	return m
}()

// logicalProps are lowered to their physical longhands; the published pages
// target Safari 16.4 where the flow-relative shorthands are not safe to rely on.
var logicalProps = map[string][2]string{
	"margin-inline":  {"margin-left", "margin-right"},
	"margin-block":   {"margin-top", "margin-bottom"},
	"padding-inline": {"padding-left", "padding-right"},
	"padding-block":  {"padding-top", "padding-bottom"},
	"inset-inline":   {"left", "right"},
	"inset-block":    {"top", "bottom"},
}

// lower rewrites flow-relative declarations into physical ones.
func lower(decls []decl) []decl {
	out := make([]decl, 0, len(decls))
	for _, dc := range decls {
		if phys, ok := logicalProps[dc.prop]; ok {
			out = append(out, decl{phys[0], dc.value}, decl{phys[1], dc.value})
			continue
		}
		out = append(out, dc)
	}
	return out
}

// Minify compacts a stylesheet with tdewolff/minify.
func Minify(stylesheet string) (string, error) {
	out, err := minifier.String(mediaType, stylesheet)
	if err != nil {
		return "", fmt.Errorf("minify: %w", err)
	}
	return out, nil
}
