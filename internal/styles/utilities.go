package styles

import (
	"sort"
	"strconv"
	"strings"
)

// decl is a single CSS declaration.
type decl struct {
	prop  string
	value string
}

// utility is the resolved form of one utility name.
type utility struct {
	decls []decl
	// child is appended to the selector for utilities that style children
	// (space-y, divide-y).
	child string
	// order is the cascade position of the utility family.
	order int
}

func d(pairs ...string) []decl {
	out := make([]decl, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, decl{pairs[i], pairs[i+1]})
	}
	return out
}

// markers are class names used only as selector hooks; they produce no rule.
var markers = map[string]bool{
	"group": true,
	"peer":  true,
	"dark":  true,
}

const transitionProps = "color,background-color,border-color,text-decoration-color,fill,stroke"

// static utilities, in cascade order.
var staticTable = []struct {
	name  string
	decls []decl
}{
	{"sr-only", d("position", "absolute", "width", "1px", "height", "1px", "padding", "0", "margin", "-1px", "overflow", "hidden", "clip", "rect(0,0,0,0)", "white-space", "nowrap", "border-width", "0")},
	{"static", d("position", "static")},
	{"fixed", d("position", "fixed")},
	{"absolute", d("position", "absolute")},
	{"relative", d("position", "relative")},
	{"sticky", d("position", "sticky")},
	{"block", d("display", "block")},
	{"inline-block", d("display", "inline-block")},
	{"inline", d("display", "inline")},
	{"flex", d("display", "flex")},
	{"inline-flex", d("display", "inline-flex")},
	{"grid", d("display", "grid")},
	{"inline-grid", d("display", "inline-grid")},
	{"contents", d("display", "contents")},
	{"table", d("display", "table")},
	{"hidden", d("display", "none")},
	{"flex-row", d("flex-direction", "row")},
	{"flex-row-reverse", d("flex-direction", "row-reverse")},
	{"flex-col", d("flex-direction", "column")},
	{"flex-col-reverse", d("flex-direction", "column-reverse")},
	{"flex-wrap", d("flex-wrap", "wrap")},
	{"flex-nowrap", d("flex-wrap", "nowrap")},
	{"flex-1", d("flex", "1 1 0%")},
	{"flex-auto", d("flex", "1 1 auto")},
	{"flex-initial", d("flex", "0 1 auto")},
	{"flex-none", d("flex", "none")},
	{"grow", d("flex-grow", "1")},
	{"flex-grow", d("flex-grow", "1")},
	{"grow-0", d("flex-grow", "0")},
	{"shrink", d("flex-shrink", "1")},
	{"shrink-0", d("flex-shrink", "0")},
	{"flex-shrink-0", d("flex-shrink", "0")},
	{"items-start", d("align-items", "flex-start")},
	{"items-end", d("align-items", "flex-end")},
	{"items-center", d("align-items", "center")},
	{"items-baseline", d("align-items", "baseline")},
	{"items-stretch", d("align-items", "stretch")},
	{"justify-start", d("justify-content", "flex-start")},
	{"justify-end", d("justify-content", "flex-end")},
	{"justify-center", d("justify-content", "center")},
	{"justify-between", d("justify-content", "space-between")},
	{"justify-around", d("justify-content", "space-around")},
	{"justify-evenly", d("justify-content", "space-evenly")},
	{"self-start", d("align-self", "flex-start")},
	{"self-end", d("align-self", "flex-end")},
	{"self-center", d("align-self", "center")},
	{"overflow-hidden", d("overflow", "hidden")},
	{"overflow-auto", d("overflow", "auto")},
	{"overflow-visible", d("overflow", "visible")},
	{"overflow-x-auto", d("overflow-x", "auto")},
	{"object-cover", d("object-fit", "cover")},
	{"object-contain", d("object-fit", "contain")},
	{"list-disc", d("list-style-type", "disc")},
	{"list-decimal", d("list-style-type", "decimal")},
	{"list-none", d("list-style-type", "none")},
	{"list-inside", d("list-style-position", "inside")},
	{"list-outside", d("list-style-position", "outside")},
	{"text-left", d("text-align", "left")},
	{"text-center", d("text-align", "center")},
	{"text-right", d("text-align", "right")},
	{"text-justify", d("text-align", "justify")},
	{"align-baseline", d("vertical-align", "baseline")},
	{"align-top", d("vertical-align", "top")},
	{"align-middle", d("vertical-align", "middle")},
	{"align-bottom", d("vertical-align", "bottom")},
	{"uppercase", d("text-transform", "uppercase")},
	{"lowercase", d("text-transform", "lowercase")},
	{"capitalize", d("text-transform", "capitalize")},
	{"normal-case", d("text-transform", "none")},
	{"italic", d("font-style", "italic")},
	{"not-italic", d("font-style", "normal")},
	{"underline", d("text-decoration-line", "underline")},
	{"line-through", d("text-decoration-line", "line-through")},
	{"no-underline", d("text-decoration-line", "none")},
	{"antialiased", d("-webkit-font-smoothing", "antialiased", "-moz-osx-font-smoothing", "grayscale")},
	{"truncate", d("overflow", "hidden", "text-overflow", "ellipsis", "white-space", "nowrap")},
	{"whitespace-normal", d("white-space", "normal")},
	{"whitespace-nowrap", d("white-space", "nowrap")},
	{"whitespace-pre", d("white-space", "pre")},
	{"whitespace-pre-line", d("white-space", "pre-line")},
	{"whitespace-pre-wrap", d("white-space", "pre-wrap")},
	{"break-words", d("overflow-wrap", "break-word")},
	{"break-all", d("word-break", "break-all")},
	{"border", d("border-style", "solid", "border-width", "1px")},
	{"border-t", d("border-top-style", "solid", "border-top-width", "1px")},
	{"border-r", d("border-right-style", "solid", "border-right-width", "1px")},
	{"border-b", d("border-bottom-style", "solid", "border-bottom-width", "1px")},
	{"border-l", d("border-left-style", "solid", "border-left-width", "1px")},
	{"border-none", d("border-style", "none")},
	{"rounded", d("border-radius", "0.25rem")},
	{"shadow", d("box-shadow", "0 1px 3px 0 rgb(0 0 0 / 0.1),0 1px 2px -1px rgb(0 0 0 / 0.1)")},
	{"ring", d("box-shadow", "0 0 0 var(--tw-ring-offset-width,0px) var(--tw-ring-offset-color,#fff),0 0 0 calc(1px + var(--tw-ring-offset-width,0px)) var(--tw-ring-color,currentColor)")},
	{"outline-none", d("outline", "2px solid transparent", "outline-offset", "2px")},
	{"pointer-events-none", d("pointer-events", "none")},
	{"cursor-pointer", d("cursor", "pointer")},
	{"select-none", d("-webkit-user-select", "none", "user-select", "none")},
	{"transition", d("transition-property", transitionProps+",opacity,box-shadow,transform,translate,scale,rotate", "transition-timing-function", defaultEasing, "transition-duration", "150ms")},
	{"transition-all", d("transition-property", "all", "transition-timing-function", defaultEasing, "transition-duration", "150ms")},
	{"transition-colors", d("transition-property", transitionProps, "transition-timing-function", defaultEasing, "transition-duration", "150ms")},
	{"transition-opacity", d("transition-property", "opacity", "transition-timing-function", defaultEasing, "transition-duration", "150ms")},
	{"transition-transform", d("transition-property", "transform,translate,scale,rotate", "transition-timing-function", defaultEasing, "transition-duration", "150ms")},
	{"mx-auto", d("margin-left", "auto", "margin-right", "auto")},
	{"my-auto", d("margin-top", "auto", "margin-bottom", "auto")},
	{"inset-0", d("top", "0", "right", "0", "bottom", "0", "left", "0")},
}

var staticIndex = func() map[string]int {
	idx := make(map[string]int, len(staticTable))
	for i, s := range staticTable {
		idx[s.name] = i
	}
	return idx
}()

// resolver turns the value part of a functional utility into declarations.
type resolver func(value string, negative bool) (utility, bool)

// functional utilities are matched by prefix; the longest prefix wins.
type functional struct {
	prefix string
	// negatable utilities accept a leading "-" (e.g. "-mt-1").
	negatable bool
	resolve   resolver
}

// functionalOrderBase keeps functional utilities after the static table in
// the cascade so that, for example, "mt-2" overrides "my-auto".
var functionalOrderBase = len(staticTable)

func spacingProps(props ...string) resolver {
	return func(v string, neg bool) (utility, bool) {
		val, ok := spacing(v)
		if !ok {
			if v != "auto" || strings.HasPrefix(props[0], "padding") || strings.HasSuffix(props[0], "gap") {
				return utility{}, false
			}
			val = "auto"
		}
		if neg {
			val = negate(val)
		}
		out := utility{}
		for _, p := range props {
			out.decls = append(out.decls, decl{p, val})
		}
		return out, true
	}
}

func sizeProps(screen string, props ...string) resolver {
	return func(v string, _ bool) (utility, bool) {
		val, ok := sizing(v, screen)
		if !ok {
			return utility{}, false
		}
		out := utility{}
		for _, p := range props {
			out.decls = append(out.decls, decl{p, val})
		}
		return out, true
	}
}

func colorProp(prop string) resolver {
	return func(v string, _ bool) (utility, bool) {
		c, ok := color(v)
		if !ok {
			return utility{}, false
		}
		return utility{decls: []decl{{prop, c}}}, true
	}
}

func lookup(table map[string]string, prop string) resolver {
	return func(v string, _ bool) (utility, bool) {
		val, ok := table[v]
		if !ok {
			return utility{}, false
		}
		return utility{decls: []decl{{prop, val}}}, true
	}
}

func integerProp(prop string, lo, hi int, format func(int) string) resolver {
	return func(v string, _ bool) (utility, bool) {
		n, err := strconv.Atoi(v)
		if err != nil || n < lo || n > hi {
			return utility{}, false
		}
		return utility{decls: []decl{{prop, format(n)}}}, true
	}
}

func borderWidth(side string) resolver {
	return func(v string, neg bool) (utility, bool) {
		if n, err := strconv.Atoi(v); err == nil && (n == 0 || n == 2 || n == 4 || n == 8) {
			prefix := "border"
			if side != "" {
				prefix = "border-" + side
			}
			return utility{decls: d(prefix+"-style", "solid", prefix+"-width", strconv.Itoa(n)+"px")}, true
		}
		if side == "" {
			return colorProp("border-color")(v, neg)
		}
		c, ok := color(v)
		if !ok {
			return utility{}, false
		}
		return utility{decls: []decl{{"border-" + side + "-color", c}}}, true
	}
}

func textUtility(v string, neg bool) (utility, bool) {
	if fs, ok := fontSizes[v]; ok {
		return utility{decls: d("font-size", fs[0], "line-height", fs[1])}, true
	}
	return colorProp("color")(v, neg)
}

func leadingUtility(v string, _ bool) (utility, bool) {
	if l, ok := leadings[v]; ok {
		return utility{decls: d("line-height", l)}, true
	}
	if s, ok := spacing(v); ok {
		return utility{decls: d("line-height", s)}, true
	}
	return utility{}, false
}

func roundedUtility(v string, _ bool) (utility, bool) {
	if r, ok := radii[v]; ok {
		return utility{decls: d("border-radius", r)}, true
	}
	return utility{}, false
}

func shadowUtility(v string, _ bool) (utility, bool) {
	if s, ok := shadows[v]; ok {
		return utility{decls: d("box-shadow", s)}, true
	}
	return utility{}, false
}

func ringUtility(v string, neg bool) (utility, bool) {
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 8 {
		width := strconv.Itoa(n) + "px"
		return utility{decls: d("box-shadow",
			"0 0 0 var(--tw-ring-offset-width,0px) var(--tw-ring-offset-color,#fff),0 0 0 calc("+width+" + var(--tw-ring-offset-width,0px)) var(--tw-ring-color,currentColor)")}, true
	}
	c, ok := color(v)
	if !ok {
		return utility{}, false
	}
	return utility{decls: d("--tw-ring-color", c)}, true
}

func ringOffsetUtility(v string, _ bool) (utility, bool) {
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 8 {
		return utility{decls: d("--tw-ring-offset-width", strconv.Itoa(n)+"px")}, true
	}
	c, ok := color(v)
	if !ok {
		return utility{}, false
	}
	return utility{decls: d("--tw-ring-offset-color", c)}, true
}

func fontUtility(v string, _ bool) (utility, bool) {
	if w, ok := fontWeights[v]; ok {
		return utility{decls: d("font-weight", w)}, true
	}
	if f, ok := fontFamilies[v]; ok {
		return utility{decls: d("font-family", f)}, true
	}
	return utility{}, false
}

func translateUtility(axes string) resolver {
	return func(v string, neg bool) (utility, bool) {
		val, ok := spacing(v)
		if !ok {
			if val, ok = fraction(v); !ok {
				if v != "full" {
					return utility{}, false
				}
				val = "100%"
			}
		}
		if neg {
			val = negate(val)
		}
		switch axes {
		case "x":
			return utility{decls: d("translate", val+" var(--tw-translate-y,0)", "--tw-translate-x", val)}, true
		case "y":
			return utility{decls: d("translate", "var(--tw-translate-x,0) "+val, "--tw-translate-y", val)}, true
		}
		return utility{decls: d("--tw-translate-x", val, "--tw-translate-y", val, "translate", val+" "+val)}, true
	}
}

func spaceUtility(axis string) resolver {
	return func(v string, neg bool) (utility, bool) {
		val, ok := spacing(v)
		if !ok {
			return utility{}, false
		}
		if neg {
			val = negate(val)
		}
		prop := "margin-top"
		if axis == "x" {
			prop = "margin-left"
		}
		return utility{decls: d(prop, val), child: ">:not([hidden])~:not([hidden])"}, true
	}
}

func divideUtility(axis string) resolver {
	return func(v string, _ bool) (utility, bool) {
		width := "1px"
		if v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || (n != 0 && n != 2 && n != 4 && n != 8) {
				return utility{}, false
			}
			width = strconv.Itoa(n) + "px"
		}
		side := "top"
		if axis == "x" {
			side = "left"
		}
		return utility{decls: d("border-"+side+"-style", "solid", "border-"+side+"-width", width), child: ">:not([hidden])~:not([hidden])"}, true
	}
}

func durationUtility(v string, _ bool) (utility, bool) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 5000 {
		return utility{}, false
	}
	return utility{decls: d("transition-duration", strconv.Itoa(n)+"ms")}, true
}

func easeUtility(v string, _ bool) (utility, bool) {
	if e, ok := easings[v]; ok {
		return utility{decls: d("transition-timing-function", e)}, true
	}
	return utility{}, false
}

var functionalTable = []functional{
	{prefix: "inset", negatable: true, resolve: spacingProps("top", "right", "bottom", "left")},
	{prefix: "top", negatable: true, resolve: spacingProps("top")},
	{prefix: "right", negatable: true, resolve: spacingProps("right")},
	{prefix: "bottom", negatable: true, resolve: spacingProps("bottom")},
	{prefix: "left", negatable: true, resolve: spacingProps("left")},
	{prefix: "z", resolve: func(v string, _ bool) (utility, bool) {
		if v == "auto" {
			return utility{decls: d("z-index", "auto")}, true
		}
		return integerProp("z-index", 0, 50, strconv.Itoa)(v, false)
	}},
	{prefix: "order", resolve: integerProp("order", 0, 12, strconv.Itoa)},
	{prefix: "col-span", resolve: integerProp("grid-column", 1, 12, func(n int) string {
		return "span " + strconv.Itoa(n) + "/span " + strconv.Itoa(n)
	})},
	{prefix: "grid-cols", resolve: integerProp("grid-template-columns", 1, 12, func(n int) string {
		return "repeat(" + strconv.Itoa(n) + ",minmax(0,1fr))"
	})},
	{prefix: "basis", resolve: sizeProps("100vw", "flex-basis")},
	{prefix: "gap", resolve: spacingProps("gap")},
	{prefix: "gap-x", resolve: spacingProps("column-gap")},
	{prefix: "gap-y", resolve: spacingProps("row-gap")},
	{prefix: "space-y", negatable: true, resolve: spaceUtility("y")},
	{prefix: "space-x", negatable: true, resolve: spaceUtility("x")},
	{prefix: "divide-y", resolve: divideUtility("y")},
	{prefix: "divide-x", resolve: divideUtility("x")},
	{prefix: "m", negatable: true, resolve: spacingProps("margin")},
	{prefix: "mx", negatable: true, resolve: spacingProps("margin-inline")},
	{prefix: "my", negatable: true, resolve: spacingProps("margin-block")},
	{prefix: "mt", negatable: true, resolve: spacingProps("margin-top")},
	{prefix: "mr", negatable: true, resolve: spacingProps("margin-right")},
	{prefix: "mb", negatable: true, resolve: spacingProps("margin-bottom")},
	{prefix: "ml", negatable: true, resolve: spacingProps("margin-left")},
	{prefix: "p", resolve: spacingProps("padding")},
	{prefix: "px", resolve: spacingProps("padding-inline")},
	{prefix: "py", resolve: spacingProps("padding-block")},
	{prefix: "pt", resolve: spacingProps("padding-top")},
	{prefix: "pr", resolve: spacingProps("padding-right")},
	{prefix: "pb", resolve: spacingProps("padding-bottom")},
	{prefix: "pl", resolve: spacingProps("padding-left")},
	{prefix: "size", resolve: sizeProps("100vw", "width", "height")},
	{prefix: "w", resolve: sizeProps("100vw", "width")},
	{prefix: "min-w", resolve: sizeProps("100vw", "min-width")},
	{prefix: "max-w", resolve: lookup(maxWidths, "max-width")},
	{prefix: "h", resolve: sizeProps("100vh", "height")},
	{prefix: "min-h", resolve: sizeProps("100vh", "min-height")},
	{prefix: "max-h", resolve: sizeProps("100vh", "max-height")},
	{prefix: "font", resolve: fontUtility},
	{prefix: "text", resolve: textUtility},
	{prefix: "leading", resolve: leadingUtility},
	{prefix: "tracking", resolve: lookup(trackings, "letter-spacing")},
	{prefix: "decoration", resolve: colorProp("text-decoration-color")},
	{prefix: "bg", resolve: colorProp("background-color")},
	{prefix: "fill", resolve: colorProp("fill")},
	{prefix: "stroke", resolve: colorProp("stroke")},
	{prefix: "border", resolve: borderWidth("")},
	{prefix: "border-t", resolve: borderWidth("top")},
	{prefix: "border-r", resolve: borderWidth("right")},
	{prefix: "border-b", resolve: borderWidth("bottom")},
	{prefix: "border-l", resolve: borderWidth("left")},
	{prefix: "rounded", resolve: roundedUtility},
	{prefix: "shadow", resolve: shadowUtility},
	{prefix: "opacity", resolve: integerProp("opacity", 0, 100, func(n int) string {
		return strconv.FormatFloat(float64(n)/100, 'f', -1, 64)
	})},
	{prefix: "ring", resolve: ringUtility},
	{prefix: "ring-offset", resolve: ringOffsetUtility},
	{prefix: "translate", negatable: true, resolve: translateUtility("xy")},
	{prefix: "translate-x", negatable: true, resolve: translateUtility("x")},
	{prefix: "translate-y", negatable: true, resolve: translateUtility("y")},
	{prefix: "duration", resolve: durationUtility},
	{prefix: "ease", resolve: easeUtility},
}

// functionalByLength holds indexes into functionalTable, longest prefix first.
var functionalByLength = func() []int {
	idx := make([]int, len(functionalTable))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return len(functionalTable[idx[a]].prefix) > len(functionalTable[idx[b]].prefix)
	})
	return idx
}()

// resolveUtility maps a utility name (without variants) to its declarations.
func resolveUtility(name string) (utility, bool) {
	if i, ok := staticIndex[name]; ok {
		return utility{decls: staticTable[i].decls, order: i}, true
	}

	negative := false
	if strings.HasPrefix(name, "-") {
		negative = true
		name = name[1:]
	}

	for _, i := range functionalByLength {
		f := functionalTable[i]
		value, ok := strings.CutPrefix(name, f.prefix+"-")
		if !ok || value == "" {
			continue
		}
		if negative && !f.negatable {
			return utility{}, false
		}
		u, ok := f.resolve(value, negative)
		if !ok {
			// a shorter prefix may still match ("border-b-2" vs "border")
			continue
		}
		u.order = functionalOrderBase + i
		return u, true
	}

	// bare functional forms like "divide-y"
	if negative {
		return utility{}, false
	}
	for i, f := range functionalTable {
		if f.prefix == name && (f.prefix == "divide-y" || f.prefix == "divide-x") {
			u, ok := f.resolve("", false)
			u.order = functionalOrderBase + i
			return u, ok
		}
	}
	return utility{}, false
}
