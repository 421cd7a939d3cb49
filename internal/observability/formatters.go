// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jonathan/cv-publisher/internal/artifacts"
	"github.com/jonathan/cv-publisher/internal/provider"
	"github.com/jonathan/cv-publisher/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// PrintDocument outputs a short summary of the CV being published.
func (p *Printer) PrintDocument(doc *types.Document) {
	if doc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:      %s\n", doc.GeneralInfo.FullName))
	sb.WriteString(fmt.Sprintf("Title:     %s\n", doc.GeneralInfo.ProfessionalTitle))
	sb.WriteString(fmt.Sprintf("Template:  %s\n", doc.TemplateKey()))
	sb.WriteString(fmt.Sprintf("Analytics: %s\n", doc.Analytics.Kind()))
	sb.WriteString("\n")

	exps := doc.Experience.Experiences
	if len(exps) > 0 {
		sb.WriteString("Experience:\n")
		count := min(len(exps), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s at %s\n", truncate(exps[i].Position, 24), truncate(exps[i].Company, 20)))
		}
		if len(exps) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(exps)-maxItemsToShow))
		}
	}
	sb.WriteString(fmt.Sprintf("Education: %d  Socials: %d", len(doc.Education.Education), len(doc.Socials.Socials)))

	p.printBox("CV DOCUMENT", sb.String())
}

// PrintBuild outputs the files of an assembled bundle and any side artifacts
// that were dropped.
func (p *Printer) PrintBuild(build *artifacts.Build) {
	if build == nil || build.Bundle == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Bundle with %d files:\n\n", build.Bundle.Len()))
	for _, name := range build.Bundle.Names() {
		payload, _ := build.Bundle.Get(name)
		sb.WriteString(fmt.Sprintf("  %-32s %6s %s\n", truncate(name, 32), humanSize(len(payload.Content)), payload.Kind))
	}

	if len(build.EnvVars) > 0 {
		sb.WriteString("\nEnvironment:\n")
		for _, k := range sortedKeys(build.EnvVars) {
			sb.WriteString(fmt.Sprintf("  %s\n", k))
		}
	}

	if len(build.UnknownTokens) > 0 {
		sb.WriteString(fmt.Sprintf("\nUnstyled classes: %s\n", truncate(strings.Join(build.UnknownTokens, " "), 38)))
	}

	if build.Degraded() {
		sb.WriteString("\nDropped:\n")
		for _, r := range build.Recovered {
			sb.WriteString(fmt.Sprintf("⚠ %s: %s\n", r.Artifact, truncate(r.Message, 45)))
		}
	}

	p.printBox("ARTIFACT BUNDLE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAccount outputs the owner of a validated token.
func (p *Printer) PrintAccount(v provider.Validation) {
	if !v.Valid {
		p.printBox("❌ TOKEN REJECTED", v.Reason)
		return
	}
	var sb strings.Builder
	if v.Account != nil {
		sb.WriteString(fmt.Sprintf("Username: %s\n", v.Account.Username))
		if v.Account.Name != "" {
			sb.WriteString(fmt.Sprintf("Name:     %s\n", v.Account.Name))
		}
		if v.Account.Email != "" {
			sb.WriteString(fmt.Sprintf("Email:    %s\n", v.Account.Email))
		}
	}
	p.printBox("✅ TOKEN VALID", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProjects outputs published projects.
func (p *Printer) PrintProjects(projects []provider.Project) {
	if len(projects) == 0 {
		p.printBox("PUBLISHED PROJECTS", "No projects found")
		return
	}
	var sb strings.Builder
	for i, pr := range projects {
		sb.WriteString(fmt.Sprintf("• %s\n", pr.Name))
		if pr.Domain != "" {
			sb.WriteString(fmt.Sprintf("  https://%s\n", pr.Domain))
		}
		if i < len(projects)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("PUBLISHED PROJECTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStatus outputs one line per job status change or build log line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintStatus(from, to types.JobStatus, message string) {
	if from == to {
		fmt.Fprintf(p.out, "    %s\n", message)
		return
	}
	if message == "" {
		fmt.Fprintf(p.out, "→ %s\n", to)
		return
	}
	fmt.Fprintf(p.out, "→ %-11s %s\n", to, message)
}

// PrintResult outputs the terminal result of a publish.
func (p *Printer) PrintResult(result *types.DeploymentResult) {
	if result == nil {
		return
	}
	var sb strings.Builder
	if result.Success {
		sb.WriteString(fmt.Sprintf("Live:       %s\n", result.LiveURL))
		if result.SettingsURL != "" {
			sb.WriteString(fmt.Sprintf("Settings:   %s\n", result.SettingsURL))
		}
		sb.WriteString(fmt.Sprintf("Deployment: %s", result.DeploymentID))
		p.printBox("✅ PUBLISHED", sb.String())
		return
	}

	sb.WriteString(fmt.Sprintf("Error:  %s\n", result.ErrorMessage))
	sb.WriteString(fmt.Sprintf("Kind:   %s\n", result.ErrorKind))
	if result.Detail != "" {
		sb.WriteString(fmt.Sprintf("Detail: %s\n", truncate(result.Detail, 46)))
	}
	if result.Retryable() {
		sb.WriteString("Retry:  yes")
	} else {
		sb.WriteString("Retry:  no, fix the input first")
	}
	p.printBox("❌ PUBLISH FAILED", sb.String())
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
