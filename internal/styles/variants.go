package styles

import "strings"

// darkSelector is the selector strategy used when dark mode does not follow
// the OS preference; the page toggles it through data-theme.
const darkSelector = ":where([data-theme=dark],[data-theme=dark] *)"

const darkMedia = "(prefers-color-scheme:dark)"

// statePseudo maps state variants to the pseudo-class appended to the selector.
var statePseudo = map[string]string{
	"hover":         ":hover",
	"focus":         ":focus",
	"active":        ":active",
	"focus-visible": ":focus-visible",
	"first":         ":first-child",
	"last":          ":last-child",
}

// groupPseudo maps group-* variants to the pseudo-class on the .group ancestor.
var groupPseudo = map[string]string{
	"group-hover": ":hover",
	"group-focus": ":focus",
}

// variantSet is the parsed variant prefix of a token.
type variantSet struct {
	breakpoint int // -1 when absent
	dark       bool
	states     []string
	groups     []string
}

// parseToken splits "md:hover:bg-neutral-100" into its variants and the
// utility name. It fails on unknown or repeated variants.
func parseToken(token string) (variantSet, string, bool) {
	vs := variantSet{breakpoint: -1}
	parts := strings.Split(token, ":")
	name := parts[len(parts)-1]
	if name == "" {
		return vs, "", false
	}
	seen := make(map[string]bool, len(parts)-1)
	for _, v := range parts[:len(parts)-1] {
		if v == "" || seen[v] {
			return vs, "", false
		}
		seen[v] = true
		switch {
		case v == "dark":
			vs.dark = true
		case statePseudo[v] != "":
			vs.states = append(vs.states, v)
		case groupPseudo[v] != "":
			vs.groups = append(vs.groups, v)
		default:
			idx := breakpointIndex(v)
			if idx < 0 || vs.breakpoint >= 0 {
				return vs, "", false
			}
			vs.breakpoint = idx
		}
	}
	return vs, name, true
}

func breakpointIndex(name string) int {
	for i, bp := range breakpoints {
		if bp.name == name {
			return i
		}
	}
	return -1
}

// weight orders rules inside one media group: fewer variants first so that
// state rules override their plain counterparts. The dark selector adds no
// specificity, so under that strategy it counts as a variant too.
func (vs variantSet) weight(darkMode bool) int {
	w := len(vs.states) + len(vs.groups)
	if vs.dark && !darkMode {
		w++
	}
	return w
}

// selector builds the full selector for token under the variant set.
func (vs variantSet) selector(token string, u utility, darkMode bool) string {
	var sb strings.Builder
	for _, g := range vs.groups {
		sb.WriteString(".group")
		sb.WriteString(groupPseudo[g])
		sb.WriteByte(' ')
	}
	sb.WriteByte('.')
	sb.WriteString(EscapeClass(token))
	for _, s := range vs.states {
		sb.WriteString(statePseudo[s])
	}
	if vs.dark && !darkMode {
		sb.WriteString(darkSelector)
	}
	sb.WriteString(u.child)
	return sb.String()
}

// mediaGroup identifies the conditional block a rule is emitted in.
type mediaGroup struct {
	breakpoint int
	dark       bool
}

func (vs variantSet) group(darkMode bool) mediaGroup {
	return mediaGroup{breakpoint: vs.breakpoint, dark: vs.dark && darkMode}
}

// rank orders groups: base first, then each breakpoint ascending, with the
// dark media variant directly after its plain counterpart.
func (g mediaGroup) rank() int {
	r := (g.breakpoint + 1) * 2
	if g.dark {
		r++
	}
	return r
}

// query returns the media query prelude, or "" for the base group.
func (g mediaGroup) query() string {
	var conds []string
	if g.breakpoint >= 0 {
		conds = append(conds, "(min-width:"+breakpoints[g.breakpoint].width+")")
	}
	if g.dark {
		conds = append(conds, darkMedia)
	}
	if len(conds) == 0 {
		return ""
	}
	return "@media " + strings.Join(conds, " and ")
}

// EscapeClass escapes a class name for use in a CSS selector, following the
// CSS.escape algorithm for identifiers.
func EscapeClass(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r == 0:
			sb.WriteString("�")
		case r >= '0' && r <= '9' && (i == 0 || (i == 1 && name[0] == '-')):
			sb.WriteString(`\3`)
			sb.WriteRune(r)
			sb.WriteByte(' ')
		case i == 0 && r == '-' && len(name) == 1:
			sb.WriteString(`\-`)
		case r >= 0x80, r == '-', r == '_',
			r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		default:
			sb.WriteByte('\\')
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
