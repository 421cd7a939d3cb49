package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-publisher/internal/artifacts"
	"github.com/jonathan/cv-publisher/internal/observability"
	"github.com/jonathan/cv-publisher/internal/rendering"
	"github.com/jonathan/cv-publisher/internal/types"
)

var renderCmd = &cobra.Command{
	Use:   "render <document>",
	Short: "Render a CV to a single HTML page",
	Long:  "Renders the document with a template and writes the self-contained page, stylesheet inlined.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var bundleCmd = &cobra.Command{
	Use:   "bundle <document>",
	Short: "Write the deployable bundle of a CV to a directory",
	Long: "Builds exactly the files a publish would upload (index.html, cv-data.json, the profile " +
		"photo and optionally the PDF) and writes them to --out-dir.",
	Args: cobra.ExactArgs(1),
	RunE: runBundle,
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the registered templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, t := range rendering.Templates() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", t.Key, t.Name)
		}
		return nil
	},
}

var (
	renderTemplate string
	renderOutput   string

	bundleTemplate   string
	bundleOutDir     string
	bundleIncludePDF bool
)

func init() {
	renderCmd.Flags().StringVarP(&renderTemplate, "template", "t", "", "Template key (default: the document's template)")
	renderCmd.Flags().StringVarP(&renderOutput, "out", "o", "", "Output HTML file (default: stdout)")

	bundleCmd.Flags().StringVarP(&bundleTemplate, "template", "t", "", "Template key (default: the document's template)")
	bundleCmd.Flags().StringVarP(&bundleOutDir, "out-dir", "o", "", "Directory to write the bundle to (required)")
	bundleCmd.Flags().BoolVar(&bundleIncludePDF, "pdf", false, "Attach a PDF rendering of the CV")
	_ = bundleCmd.MarkFlagRequired("out-dir")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	doc, err := readDocument(cmd, args[0])
	if err != nil {
		return err
	}
	renderer, err := newRenderer()
	if err != nil {
		return err
	}
	template := renderTemplate
	if template == "" {
		template = cfg.Template
	}

	out, err := renderer.Render(doc, template)
	if err != nil {
		return err
	}
	if len(out.UnknownTokens) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d class tokens have no utility rule: %v\n", len(out.UnknownTokens), out.UnknownTokens)
	}
	return writeOutput(cmd, renderOutput, []byte(out.HTML))
}

func runBundle(cmd *cobra.Command, args []string) error {
	doc, err := readDocument(cmd, args[0])
	if err != nil {
		return err
	}
	renderer, err := newRenderer()
	if err != nil {
		return err
	}
	template := bundleTemplate
	if template == "" {
		template = cfg.Template
	}

	build, err := newBuilder(renderer).Build(cmd.Context(), doc, artifacts.Options{
		IncludePDF: bundleIncludePDF || cfg.IncludePDF,
		Template:   template,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(bundleOutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, name := range build.Bundle.Names() {
		payload, _ := build.Bundle.Get(name)
		data, err := decodePayload(payload)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		target := filepath.Join(bundleOutDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintBuild(build)
	return nil
}

func decodePayload(p types.FilePayload) ([]byte, error) {
	if p.Kind == types.PayloadBase64 {
		return base64.StdEncoding.DecodeString(p.Content)
	}
	return []byte(p.Content), nil
}
