package publish

import (
	"strings"

	"github.com/jonathan/cv-publisher/internal/provider"
)

// Verdict is what a build log line says about the build.
type Verdict int

// Verdicts. Continue means the line says nothing terminal.
const (
	Continue Verdict = iota
	BuildReady
	BuildFailed
)

func (v Verdict) String() string {
	switch v {
	case BuildReady:
		return "ready"
	case BuildFailed:
		return "failed"
	default:
		return "continue"
	}
}

// Rule maps matching events to a verdict.
type Rule struct {
	Name    string
	Match   func(provider.Event) bool
	Verdict Verdict
}

// Classifier evaluates rules in order; the first match wins and unmatched
// events continue.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over rules, evaluated in the given order.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// DefaultClassifier recognizes the provider's build log wording. Ready rules
// come first, so "Build completed" wins over an "Error" in the same line.
func DefaultClassifier() *Classifier {
	return NewClassifier(
		Rule{Name: "deployment completed", Match: TextContains("Deployment completed"), Verdict: BuildReady},
		Rule{Name: "build completed", Match: TextContains("Build completed"), Verdict: BuildReady},
		Rule{Name: "ready", Match: TextContains("Ready!"), Verdict: BuildReady},
		Rule{Name: "build failed", Match: TextContains("Build failed"), Verdict: BuildFailed},
		Rule{Name: "error", Match: TextContains("Error"), Verdict: BuildFailed},
		Rule{Name: "failed", Match: TextContains("Failed"), Verdict: BuildFailed},
	)
}

// TextContains matches events whose text contains substr (case-sensitive).
func TextContains(substr string) func(provider.Event) bool {
	return func(ev provider.Event) bool {
		return ev.Text != "" && strings.Contains(ev.Text, substr)
	}
}

// Classify returns the verdict for ev and the name of the matching rule.
func (c *Classifier) Classify(ev provider.Event) (Verdict, string) {
	for _, r := range c.rules {
		if r.Match(ev) {
			return r.Verdict, r.Name
		}
	}
	return Continue, ""
}
