package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-publisher/internal/observability"
	"github.com/jonathan/cv-publisher/internal/publish"
)

var publishCmd = &cobra.Command{
	Use:   "publish <document>",
	Short: "Publish a CV to Vercel",
	Long: "Validates the token, renders and bundles the document, uploads it as a production " +
		"deployment and follows the build log until the site is live. Use - to read the document from stdin.",
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

var (
	publishProject        string
	publishTemplate       string
	publishIncludePDF     bool
	publishToken          string
	publishMonitorTimeout time.Duration
)

func init() {
	publishCmd.Flags().StringVarP(&publishProject, "project", "p", "", "Project name (default: the CV's full name, or the configured project)")
	publishCmd.Flags().StringVarP(&publishTemplate, "template", "t", "", "Template key (default: the document's template)")
	publishCmd.Flags().BoolVar(&publishIncludePDF, "pdf", false, "Attach a PDF rendering of the CV")
	publishCmd.Flags().StringVar(&publishToken, "token", "", "Vercel token (default: $VERCEL_TOKEN)")
	publishCmd.Flags().DurationVar(&publishMonitorTimeout, "monitor-timeout", 0, "How long to follow the build before giving up (default: configured value)")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	token, err := resolveToken(publishToken)
	if err != nil {
		return err
	}
	doc, err := readDocument(cmd, args[0])
	if err != nil {
		return err
	}
	renderer, err := newRenderer()
	if err != nil {
		return err
	}

	timeout := cfg.MonitorTimeout.Std()
	if publishMonitorTimeout > 0 {
		timeout = publishMonitorTimeout
	}
	project := publishProject
	if project == "" {
		project = cfg.Project
	}
	template := publishTemplate
	if template == "" {
		template = cfg.Template
	}
	includePDF := publishIncludePDF || cfg.IncludePDF

	orch := publish.New(newVercel(), newBuilder(renderer),
		publish.WithMonitorTimeout(timeout),
		publish.WithLogger(slog.Default()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintDocument(doc)

	result, err := orch.Publish(ctx, publish.Request{
		Document:   doc,
		Token:      token,
		Project:    project,
		Template:   template,
		IncludePDF: includePDF,
		OnTransition: func(t publish.Transition) {
			if t.Result != nil {
				return
			}
			printer.PrintStatus(t.From, t.To, t.Message)
		},
	})
	if err != nil {
		return err
	}

	printer.PrintResult(result)
	if !result.Success {
		return fmt.Errorf("publish failed: %s", result.ErrorMessage)
	}
	return nil
}
