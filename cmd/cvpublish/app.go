package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-publisher/internal/artifacts"
	"github.com/jonathan/cv-publisher/internal/fetch"
	"github.com/jonathan/cv-publisher/internal/pdf"
	"github.com/jonathan/cv-publisher/internal/provider"
	"github.com/jonathan/cv-publisher/internal/rendering"
	"github.com/jonathan/cv-publisher/internal/schemas"
	"github.com/jonathan/cv-publisher/internal/types"
)

// httpClient, when set, is used for every outbound request. Tests point it at
// httptest servers.
var httpClient *http.Client

func newRenderer() (*rendering.Renderer, error) {
	return rendering.New(
		rendering.WithLogger(slog.Default()),
		rendering.WithDarkMode(cfg.DarkMode),
	)
}

func newBuilder(renderer *rendering.Renderer) *artifacts.Builder {
	logger := slog.Default()
	fetcher := artifacts.HTTPPhotoFetcher{}
	if httpClient != nil {
		opts := fetch.DefaultOptions()
		opts.Client = httpClient
		fetcher.Options = opts
	}
	return artifacts.NewBuilder(renderer,
		artifacts.WithPDFRenderer(pdf.NewChrome(pdf.ChromeOptions{
			Timeout: cfg.ChromeTimeout.Std(),
			Logger:  logger,
		})),
		artifacts.WithPhotoFetcher(fetcher),
		artifacts.WithLogger(logger),
	)
}

func newVercel() *provider.Vercel {
	opts := []provider.VercelOption{
		provider.WithBaseURL(cfg.APIBaseURL),
		provider.WithProjectPrefix(cfg.ProjectPrefix),
		provider.WithLogger(slog.Default()),
	}
	if httpClient != nil {
		opts = append(opts, provider.WithHTTPClient(httpClient))
	}
	return provider.NewVercel(opts...)
}

// resolveToken prefers the flag over the configured token.
func resolveToken(flag string) (string, error) {
	token := strings.TrimSpace(flag)
	if token == "" {
		token = strings.TrimSpace(cfg.Token)
	}
	if token == "" {
		return "", fmt.Errorf("a Vercel token is required: pass --token or set VERCEL_TOKEN")
	}
	return token, nil
}

// readDocument loads a CV document from path, or from stdin when path is "-".
// Files ending in .yaml or .yml are read as YAML.
func readDocument(cmd *cobra.Command, path string) (*types.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc, err := schemas.DecodeDocumentFile(path, data)
	if err != nil {
		return nil, fmt.Errorf("invalid document %s: %w", path, err)
	}
	return doc, nil
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
