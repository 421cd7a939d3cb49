// Package styles compiles the utility class names found in rendered markup
// into the minimal stylesheet that page needs.
package styles

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/jonathan/cv-publisher/internal/logfields"
)

// Options configures a compilation.
type Options struct {
	// Minify runs the minification and lowering pass.
	Minify bool
	// DarkMode makes the dark: variant follow prefers-color-scheme. When
	// false the variant applies under [data-theme=dark].
	DarkMode bool
}

// Result is a compiled stylesheet plus the tokens that produced no rule.
type Result struct {
	CSS string
	// Unknown lists tokens that matched no utility, sorted.
	Unknown []string
	// Markers lists selector hooks such as "group" that need no rule.
	Markers []string
	// Minified is false when minification was off or failed.
	Minified bool
}

// Compiler turns class tokens into CSS.
type Compiler struct {
	logger *slog.Logger
	minify func(string) (string, error)
}

// NewCompiler creates a compiler. A nil logger uses slog.Default().
func NewCompiler(logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{logger: logger, minify: Minify}
}

// Compile is NewCompiler(nil).Compile.
func Compile(tokens []string, opts Options) Result {
	return NewCompiler(nil).Compile(tokens, opts)
}

type rule struct {
	group    mediaGroup
	weight   int
	order    int
	token    string
	selector string
	decls    []decl
}

// Compile resolves every token against the utility grammar. Unknown tokens
// are dropped and reported, never fatal. If minification fails the readable
// CSS is returned instead.
func (c *Compiler) Compile(tokens []string, opts Options) Result {
	var res Result
	var rules []rule

	for _, token := range dedupe(tokens) {
		if markers[token] {
			res.Markers = append(res.Markers, token)
			continue
		}
		vs, name, ok := parseToken(token)
		if !ok {
			res.Unknown = append(res.Unknown, token)
			continue
		}
		u, ok := resolveUtility(name)
		if !ok {
			res.Unknown = append(res.Unknown, token)
			continue
		}
		rules = append(rules, rule{
			group:    vs.group(opts.DarkMode),
			weight:   vs.weight(opts.DarkMode),
			order:    u.order,
			token:    token,
			selector: vs.selector(token, u, opts.DarkMode),
			decls:    lower(u.decls),
		})
	}

	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.group.rank() != b.group.rank() {
			return a.group.rank() < b.group.rank()
		}
		if a.weight != b.weight {
			return a.weight < b.weight
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.token < b.token
	})

	if len(res.Unknown) > 0 {
		c.logger.Debug("Dropped unknown class tokens",
			logfields.Count(len(res.Unknown)),
			slog.Any("tokens", res.Unknown))
	}

	pretty := render(rules)
	res.CSS = pretty
	if !opts.Minify {
		return res
	}

	minified, err := c.minify(pretty)
	if err != nil {
		c.logger.Warn("CSS minification failed, using unminified stylesheet", logfields.Error(err))
		return res
	}
	res.CSS = minified
	res.Minified = true
	return res
}

// render writes rules in readable form, wrapping each media group once.
func render(rules []rule) string {
	var sb strings.Builder
	sb.WriteString("/* utilities v" + GrammarVersion + " */\n")

	open := false
	var current mediaGroup
	for i, r := range rules {
		if i == 0 || r.group != current {
			if open {
				sb.WriteString("}\n")
				open = false
			}
			current = r.group
			if q := r.group.query(); q != "" {
				sb.WriteString(q)
				sb.WriteString(" {\n")
				open = true
			}
		}
		indent := ""
		if open {
			indent = "  "
		}
		sb.WriteString(indent)
		sb.WriteString(r.selector)
		sb.WriteString(" {\n")
		for _, dc := range r.decls {
			sb.WriteString(indent)
			sb.WriteString("  ")
			sb.WriteString(dc.prop)
			sb.WriteString(": ")
			sb.WriteString(dc.value)
			sb.WriteString(";\n")
		}
		sb.WriteString(indent)
		sb.WriteString("}\n")
	}
	if open {
		sb.WriteString("}\n")
	}
	return sb.String()
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
