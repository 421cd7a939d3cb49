// Package pdf prints rendered CV pages to PDF with a headless browser.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jonathan/cv-publisher/internal/logfields"
)

// DefaultTimeout bounds a single print job.
const DefaultTimeout = 45 * time.Second

// A4 paper size in inches.
const (
	A4Width  = 8.27
	A4Height = 11.69
)

// Renderer turns a self-contained HTML page into PDF bytes.
type Renderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, html string) ([]byte, error)

// RenderPDF calls f.
func (f RendererFunc) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	return f(ctx, html)
}

// Error represents a failed print job.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pdf error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("pdf error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ChromeOptions configures Chrome.
type ChromeOptions struct {
	// Timeout bounds the whole print job. Zero means DefaultTimeout.
	Timeout time.Duration
	// ExecPath points at a Chrome/Chromium binary; empty uses chromedp's lookup.
	ExecPath string
	Logger   *slog.Logger
}

// Chrome prints pages with a headless Chrome started per job.
// Requires Chrome/Chromium to be installed on the system.
type Chrome struct {
	timeout  time.Duration
	execPath string
	logger   *slog.Logger
}

// NewChrome creates a Chrome renderer.
func NewChrome(opts ChromeOptions) *Chrome {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Chrome{timeout: opts.Timeout, execPath: opts.ExecPath, logger: opts.Logger}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}
	return opts
}

// RenderPDF loads html into a blank page and prints it on A4 with
// backgrounds. The page must not depend on relative URLs.
func (c *Chrome) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	start := time.Now()

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, c.timeout)
	defer cancel()

	var out []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(A4Width).
				WithPaperHeight(A4Height).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			out = buf
			return nil
		}),
	)
	if err != nil {
		return nil, &Error{Message: "browser print failed", Cause: err}
	}
	if err := Check(out); err != nil {
		return nil, err
	}

	c.logger.Debug("Printed PDF",
		slog.Int("bytes", len(out)),
		logfields.Duration(time.Since(start)))
	return out, nil
}

// Check verifies that data looks like a PDF document.
func Check(data []byte) error {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return &Error{Message: "output is not a PDF document"}
	}
	return nil
}
