package styles

import (
	"fmt"
	"strconv"
	"strings"
)

// GrammarVersion identifies the utility tables below. Bump it whenever a
// table changes so published stylesheets can be traced to a grammar.
const GrammarVersion = "2"

// breakpoint is a min-width media condition selected by a variant prefix.
type breakpoint struct {
	name  string
	width string
}

// breakpoints in ascending order; the index is the output rank.
var breakpoints = []breakpoint{
	{"sm", "40rem"},
	{"md", "48rem"},
	{"lg", "64rem"},
	{"xl", "80rem"},
	{"2xl", "96rem"},
}

var colorShades = []string{"50", "100", "200", "300", "400", "500", "600", "700", "800", "900", "950"}

var palette = map[string][]string{
	"neutral": {"#fafafa", "#f5f5f5", "#e5e5e5", "#d4d4d4", "#a3a3a3", "#737373", "#525252", "#404040", "#262626", "#171717", "#0a0a0a"},
	"zinc":    {"#fafafa", "#f4f4f5", "#e4e4e7", "#d4d4d8", "#a1a1aa", "#71717a", "#52525b", "#3f3f46", "#27272a", "#18181b", "#09090b"},
	"gray":    {"#f9fafb", "#f3f4f6", "#e5e7eb", "#d1d5db", "#9ca3af", "#6b7280", "#4b5563", "#374151", "#1f2937", "#111827", "#030712"},
	"slate":   {"#f8fafc", "#f1f5f9", "#e2e8f0", "#cbd5e1", "#94a3b8", "#64748b", "#475569", "#334155", "#1e293b", "#0f172a", "#020617"},
	"stone":   {"#fafaf9", "#f5f5f4", "#e7e5e4", "#d6d3d1", "#a8a29e", "#78716c", "#57534e", "#44403c", "#292524", "#1c1917", "#0c0a09"},
	"blue":    {"#eff6ff", "#dbeafe", "#bfdbfe", "#93c5fd", "#60a5fa", "#3b82f6", "#2563eb", "#1d4ed8", "#1e40af", "#1e3a8a", "#172554"},
	"indigo":  {"#eef2ff", "#e0e7ff", "#c7d2fe", "#a5b4fc", "#818cf8", "#6366f1", "#4f46e5", "#4338ca", "#3730a3", "#312e81", "#1e1b4b"},
	"emerald": {"#ecfdf5", "#d1fae5", "#a7f3d0", "#6ee7b7", "#34d399", "#10b981", "#059669", "#047857", "#065f46", "#064e3b", "#022c22"},
	"red":     {"#fef2f2", "#fee2e2", "#fecaca", "#fca5a5", "#f87171", "#ef4444", "#dc2626", "#b91c1c", "#991b1b", "#7f1d1d", "#450a0a"},
	"amber":   {"#fffbeb", "#fef3c7", "#fde68a", "#fcd34d", "#fbbf24", "#f59e0b", "#d97706", "#b45309", "#92400e", "#78350f", "#451a03"},
}

var namedColors = map[string]string{
	"black":       "#000000",
	"white":       "#ffffff",
	"transparent": "transparent",
	"current":     "currentColor",
	"inherit":     "inherit",
}

// fontSizes maps size keys to font-size and the paired line-height.
var fontSizes = map[string][2]string{
	"xs":   {"0.75rem", "1rem"},
	"sm":   {"0.875rem", "1.25rem"},
	"base": {"1rem", "1.5rem"},
	"lg":   {"1.125rem", "1.75rem"},
	"xl":   {"1.25rem", "1.75rem"},
	"2xl":  {"1.5rem", "2rem"},
	"3xl":  {"1.875rem", "2.25rem"},
	"4xl":  {"2.25rem", "2.5rem"},
	"5xl":  {"3rem", "1"},
	"6xl":  {"3.75rem", "1"},
}

var fontWeights = map[string]string{
	"thin": "100", "extralight": "200", "light": "300", "normal": "400",
	"medium": "500", "semibold": "600", "bold": "700", "extrabold": "800", "black": "900",
}

var fontFamilies = map[string]string{
	"sans":  `"Rethink Sans",ui-sans-serif,system-ui,sans-serif`,
	"serif": `ui-serif,Georgia,Cambria,"Times New Roman",Times,serif`,
	"mono":  `ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,monospace`,
}

var leadings = map[string]string{
	"none": "1", "tight": "1.25", "snug": "1.375", "normal": "1.5", "relaxed": "1.625", "loose": "2",
}

var trackings = map[string]string{
	"tighter": "-0.05em", "tight": "-0.025em", "normal": "0em", "wide": "0.025em", "wider": "0.05em", "widest": "0.1em",
}

var radii = map[string]string{
	"none": "0", "xs": "0.125rem", "sm": "0.25rem", "md": "0.375rem", "lg": "0.5rem",
	"xl": "0.75rem", "2xl": "1rem", "3xl": "1.5rem", "full": "9999px",
}

var maxWidths = map[string]string{
	"xs": "20rem", "sm": "24rem", "md": "28rem", "lg": "32rem", "xl": "36rem",
	"2xl": "42rem", "3xl": "48rem", "4xl": "56rem", "5xl": "64rem", "6xl": "72rem",
	"7xl": "80rem", "none": "none", "full": "100%", "prose": "65ch",
}

var shadows = map[string]string{
	"sm":   "0 1px 3px 0 rgb(0 0 0 / 0.1),0 1px 2px -1px rgb(0 0 0 / 0.1)",
	"md":   "0 4px 6px -1px rgb(0 0 0 / 0.1),0 2px 4px -2px rgb(0 0 0 / 0.1)",
	"lg":   "0 10px 15px -3px rgb(0 0 0 / 0.1),0 4px 6px -4px rgb(0 0 0 / 0.1)",
	"xl":   "0 20px 25px -5px rgb(0 0 0 / 0.1),0 8px 10px -6px rgb(0 0 0 / 0.1)",
	"2xl":  "0 25px 50px -12px rgb(0 0 0 / 0.25)",
	"none": "0 0 #0000",
}

var easings = map[string]string{
	"linear": "linear",
	"in":     "cubic-bezier(0.4,0,1,1)",
	"out":    "cubic-bezier(0,0,0.2,1)",
	"in-out": "cubic-bezier(0.4,0,0.2,1)",
}

const defaultEasing = "cubic-bezier(0.4,0,0.2,1)"

// spacing resolves a spacing-scale key: integers and half steps map to
// multiples of 0.25rem, "px" to 1px.
func spacing(key string) (string, bool) {
	if key == "px" {
		return "1px", true
	}
	if key == "0" {
		return "0", true
	}
	f, err := strconv.ParseFloat(key, 64)
	if err != nil || f < 0 || f > 96 {
		return "", false
	}
	// only whole and half steps belong to the scale
	if f*2 != float64(int(f*2)) {
		return "", false
	}
	return formatRem(f * 0.25), true
}

// fraction resolves "a/b" to a percentage.
func fraction(key string) (string, bool) {
	num, den, ok := strings.Cut(key, "/")
	if !ok {
		return "", false
	}
	a, err1 := strconv.Atoi(num)
	b, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || b == 0 || a < 0 || a > b {
		return "", false
	}
	return strconv.FormatFloat(float64(a)*100/float64(b), 'f', -1, 64) + "%", true
}

// sizing resolves width/height style keys.
func sizing(key, screen string) (string, bool) {
	switch key {
	case "auto":
		return "auto", true
	case "full":
		return "100%", true
	case "screen":
		return screen, true
	case "min":
		return "min-content", true
	case "max":
		return "max-content", true
	case "fit":
		return "fit-content", true
	}
	if v, ok := fraction(key); ok {
		return v, true
	}
	return spacing(key)
}

// color resolves a palette key with an optional "/NN" opacity modifier.
func color(key string) (string, bool) {
	name, alpha, hasAlpha := strings.Cut(key, "/")
	var hex string
	if c, ok := namedColors[name]; ok {
		hex = c
	} else {
		family, shade, ok := strings.Cut(name, "-")
		if !ok {
			return "", false
		}
		shades, ok := palette[family]
		if !ok {
			return "", false
		}
		idx := indexOf(colorShades, shade)
		if idx < 0 {
			return "", false
		}
		hex = shades[idx]
	}
	if !hasAlpha {
		return hex, true
	}
	pct, err := strconv.Atoi(alpha)
	if err != nil || pct < 0 || pct > 100 || !strings.HasPrefix(hex, "#") {
		return "", false
	}
	r, g, b := hexToRGB(hex)
	return fmt.Sprintf("rgb(%d %d %d / %s)", r, g, b, strconv.FormatFloat(float64(pct)/100, 'f', -1, 64)), true
}

func hexToRGB(hex string) (int, int, int) {
	v, _ := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func formatRem(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64) + "rem"
}

func negate(v string) string {
	if v == "0" || v == "auto" {
		return v
	}
	if strings.HasPrefix(v, "-") {
		return strings.TrimPrefix(v, "-")
	}
	return "-" + v
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
