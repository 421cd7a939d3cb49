// Package artifacts assembles the deployable bundle of a CV: the rendered
// page, the JSON snapshot it was rendered from, and the best-effort photo
// and PDF side artifacts.
package artifacts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-publisher/internal/logfields"
	"github.com/jonathan/cv-publisher/internal/naming"
	"github.com/jonathan/cv-publisher/internal/pdf"
	"github.com/jonathan/cv-publisher/internal/rendering"
	"github.com/jonathan/cv-publisher/internal/types"
)

// Options configures a single build.
type Options struct {
	// IncludePDF attempts the PDF side artifact.
	IncludePDF bool
	// Template overrides the document's template when set.
	Template string
}

// Build is the result of a successful build.
type Build struct {
	Bundle *types.Bundle
	// EnvVars are passed to the deployed site.
	EnvVars map[string]string
	// Document is the snapshot written to cv-data.json and rendered into
	// index.html, with the photo rewritten to its bundle path.
	Document *types.Document
	HTML     string
	CSS      string
	// PhotoFile and PDFFile name the optional entries, empty when absent.
	PhotoFile string
	PDFFile   string
	// UnknownTokens are classes in the page the style compiler skipped.
	UnknownTokens []string
	// Recovered lists sub-artifacts that failed and were left out.
	Recovered []*Recoverable
}

// Degraded reports whether any side artifact was dropped.
func (b *Build) Degraded() bool {
	return len(b.Recovered) > 0
}

type entry struct {
	name    string
	payload types.FilePayload
}

// Builder assembles artifact bundles.
type Builder struct {
	renderer *rendering.Renderer
	pdf      pdf.Renderer
	photos   PhotoFetcher
	stamper  *naming.Stamper
	logger   *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPDFRenderer sets the PDF renderer. Without one, PDF requests degrade.
func WithPDFRenderer(r pdf.Renderer) BuilderOption {
	return func(b *Builder) { b.pdf = r }
}

// WithPhotoFetcher sets how previously published photos are downloaded.
func WithPhotoFetcher(f PhotoFetcher) BuilderOption {
	return func(b *Builder) { b.photos = f }
}

// WithStamper sets the stamp source for photo filenames.
func WithStamper(s *naming.Stamper) BuilderOption {
	return func(b *Builder) { b.stamper = s }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

// NewBuilder creates a builder rendering pages with renderer.
func NewBuilder(renderer *rendering.Renderer, opts ...BuilderOption) *Builder {
	b := &Builder{
		renderer: renderer,
		photos:   HTTPPhotoFetcher{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.stamper == nil {
		b.stamper = naming.NewStamper(nil)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Build renders doc and assembles its bundle. Photo and PDF failures are
// recorded in Build.Recovered and never fail the build; an unknown template,
// a render failure or a dangling reference does.
func (b *Builder) Build(ctx context.Context, doc *types.Document, opts Options) (*Build, error) {
	if doc == nil {
		return nil, &BuildError{Message: "document is required"}
	}
	start := time.Now()

	key := opts.Template
	if key == "" {
		key = doc.TemplateKey()
	}
	if !rendering.IsRegistered(key) {
		return nil, &rendering.UnknownTemplateError{Key: key, Available: rendering.TemplateKeys()}
	}

	build := &Build{}

	var ph *photo
	b.processPhoto(ctx, doc.GeneralInfo.Photo).Match(
		func(p *photo) { ph = p },
		func(r *Recoverable) { b.absorb(build, r) },
	)

	// the snapshot is what both index.html and cv-data.json are produced from
	snapshot := doc.Clone()
	snapshot.Template = key
	snapshot.GeneralInfo.Photo = ""
	if ph != nil {
		snapshot.GeneralInfo.Photo = naming.RelativePath(ph.Name)
	}
	pdfName := rendering.PDFFilename(snapshot)

	var (
		page       *rendering.Output
		pdfOutcome Outcome[[]byte]
	)
	g, gCtx := errgroup.WithContext(ctx)
	if opts.IncludePDF {
		g.Go(func() error {
			pdfOutcome = b.printPDF(gCtx, snapshot, ph)
			return nil
		})
	}
	g.Go(func() error {
		pageOpts := rendering.PageOptions{}
		if opts.IncludePDF {
			// optimistic: re-rendered without the link if the PDF fails
			pageOpts.PDFFile = pdfName
		}
		out, err := b.renderer.RenderPage(snapshot, key, pageOpts)
		if err != nil {
			return err
		}
		page = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pdfData []byte
	if opts.IncludePDF {
		pdfOutcome.Match(
			func(data []byte) { pdfData = data },
			func(r *Recoverable) { b.absorb(build, r) },
		)
		if pdfData == nil {
			out, err := b.renderer.RenderPage(snapshot, key, rendering.PageOptions{})
			if err != nil {
				return nil, err
			}
			page = out
		}
	}

	snapshotJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, &BuildError{Message: "failed to encode " + types.CVDataFile, Cause: err}
	}

	entries := []entry{
		{types.IndexFile, types.TextFile(page.HTML)},
		{types.CVDataFile, types.TextFile(string(snapshotJSON))},
	}
	if ph != nil {
		entries = append(entries, entry{ph.Name, types.Base64File(ph.Payload)})
		build.PhotoFile = ph.Name
	}
	if pdfData != nil {
		entries = append(entries, entry{pdfName, types.Base64File(base64.StdEncoding.EncodeToString(pdfData))})
		build.PDFFile = pdfName
	}

	bundle := types.NewBundle()
	for _, e := range entries {
		if err := bundle.Add(e.name, e.payload); err != nil {
			return nil, &BuildError{Message: "failed to assemble bundle", Cause: err}
		}
	}

	if err := VerifyBundle(bundle); err != nil {
		return nil, err
	}

	build.Bundle = bundle
	build.EnvVars = snapshot.Analytics.EnvVars()
	build.Document = snapshot
	build.HTML = page.HTML
	build.CSS = page.CSS
	build.UnknownTokens = page.UnknownTokens

	b.logger.Info("Built artifact bundle",
		logfields.Template(key),
		logfields.Count(bundle.Len()),
		slog.Bool("degraded", build.Degraded()),
		logfields.Duration(time.Since(start)))
	return build, nil
}

// printPDF renders a print version of the page and prints it. The print page
// inlines the photo, since the browser cannot resolve bundle paths, and
// carries no analytics.
func (b *Builder) printPDF(ctx context.Context, snapshot *types.Document, ph *photo) Outcome[[]byte] {
	if b.pdf == nil {
		return Degraded[[]byte](ArtifactPDF, "no PDF renderer configured", nil)
	}

	printDoc := snapshot.Clone()
	printDoc.Analytics = types.Analytics{Type: types.AnalyticsNone}
	printDoc.GeneralInfo.Photo = ""
	if ph != nil {
		printDoc.GeneralInfo.Photo = ph.dataURL()
	}
	out, err := b.renderer.RenderPage(printDoc, printDoc.Template, rendering.PageOptions{})
	if err != nil {
		return Degraded[[]byte](ArtifactPDF, "could not render print page", err)
	}

	data, err := b.pdf.RenderPDF(ctx, out.HTML)
	if err != nil {
		return Degraded[[]byte](ArtifactPDF, "PDF generation failed", err)
	}
	if err := pdf.Check(data); err != nil {
		return Degraded[[]byte](ArtifactPDF, "PDF output rejected", err)
	}
	return Ok(data)
}

func (b *Builder) absorb(build *Build, r *Recoverable) {
	build.Recovered = append(build.Recovered, r)
	b.logger.Warn("Side artifact failed, continuing without it",
		logfields.Artifact(r.Artifact),
		logfields.Error(r))
}
