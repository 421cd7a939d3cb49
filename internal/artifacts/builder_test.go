package artifacts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-publisher/internal/naming"
	"github.com/jonathan/cv-publisher/internal/pdf"
	"github.com/jonathan/cv-publisher/internal/rendering"
	"github.com/jonathan/cv-publisher/internal/schemas"
	"github.com/jonathan/cv-publisher/internal/types"
)

const (
	stamp       = int64(1700000000000)
	inlinePhoto = "data:image/webp;base64,UklGRg=="
	fakePDF     = "%PDF-1.4\n%fake\n"
)

var fixedNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func testDocument() *types.Document {
	return &types.Document{
		GeneralInfo: types.GeneralInfo{
			FullName:          "Jane Doe",
			ProfessionalTitle: "Software Engineer",
		},
		Experience: types.ExperienceData{Experiences: []types.ExperienceItem{{
			Company:  "Acme",
			Position: "Engineer",
			Location: "Berlin",
			Dates:    types.DateRange{StartDate: "2020-01", EndDate: "2022-06"},
		}}},
		Education: types.EducationData{Education: []types.EducationItem{}},
		Socials:   types.SocialsData{Socials: []types.SocialItem{}},
		Analytics: types.Analytics{Type: types.AnalyticsGoogle, GoogleTrackingID: "G-TEST123"},
		Template:  "minimal",
	}
}

// recordingPDF captures the pages it prints.
type recordingPDF struct {
	mu    sync.Mutex
	pages []string
	err   error
}

func (r *recordingPDF) RenderPDF(_ context.Context, html string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, html)
	if r.err != nil {
		return nil, r.err
	}
	return []byte(fakePDF), nil
}

type stubFetcher struct {
	data []byte
	err  error
	urls []string
}

func (s *stubFetcher) FetchPhoto(_ context.Context, url string) ([]byte, error) {
	s.urls = append(s.urls, url)
	return s.data, s.err
}

func newTestBuilder(t *testing.T, opts ...BuilderOption) *Builder {
	t.Helper()
	renderer, err := rendering.New(rendering.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	base := []BuilderOption{
		WithStamper(naming.NewStamper(func() time.Time { return time.UnixMilli(stamp) })),
		WithPhotoFetcher(&stubFetcher{err: errors.New("unexpected fetch")}),
	}
	return NewBuilder(renderer, append(base, opts...)...)
}

func snapshotOf(t *testing.T, build *Build) map[string]any {
	t.Helper()
	payload, ok := build.Bundle.Get(types.CVDataFile)
	require.True(t, ok)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload.Content), &v))
	return v
}

func TestBuild_GoogleAnalyticsNoPhoto(t *testing.T) {
	b := newTestBuilder(t)
	build, err := b.Build(context.Background(), testDocument(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{types.IndexFile, types.CVDataFile}, build.Bundle.Names())
	assert.Equal(t, map[string]string{types.EnvGoogleAnalyticsID: "G-TEST123"}, build.EnvVars)
	assert.False(t, build.Degraded())
	assert.Empty(t, build.PhotoFile)
	assert.Empty(t, build.PDFFile)

	index, _ := build.Bundle.Get(types.IndexFile)
	assert.Equal(t, types.PayloadText, index.Kind)
	assert.Contains(t, index.Content, "G-TEST123")
	assert.NotContains(t, index.Content, "<img")

	for _, f := range build.Bundle.Manifest() {
		assert.Equal(t, "utf8", f.Encoding, f.File)
	}
}

func TestBuild_InlinePhoto(t *testing.T) {
	doc := testDocument()
	doc.GeneralInfo.Photo = inlinePhoto

	build, err := newTestBuilder(t).Build(context.Background(), doc, Options{})
	require.NoError(t, err)

	photoName := "profile-photo-1700000000000.webp"
	assert.Equal(t, []string{types.IndexFile, types.CVDataFile, photoName}, build.Bundle.Names())
	assert.Equal(t, photoName, build.PhotoFile)

	payload, ok := build.Bundle.Get(photoName)
	require.True(t, ok)
	assert.Equal(t, types.PayloadBase64, payload.Kind)
	assert.Equal(t, "UklGRg==", payload.Content)

	general := snapshotOf(t, build)["generalInfo"].(map[string]any)
	assert.Equal(t, "./"+photoName, general["photo"])

	index, _ := build.Bundle.Get(types.IndexFile)
	assert.Contains(t, index.Content, `src="./`+photoName+`"`)

	// the caller's document is untouched
	assert.Equal(t, inlinePhoto, doc.GeneralInfo.Photo)
}

func TestBuild_RemotePhoto(t *testing.T) {
	webp := []byte("RIFF\x1a\x00\x00\x00WEBPVP8 ")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile-photo-1600000000000.webp" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write(webp)
	}))
	defer server.Close()

	doc := testDocument()
	doc.GeneralInfo.Photo = server.URL + "/profile-photo-1600000000000.webp"

	b := newTestBuilder(t, WithPhotoFetcher(HTTPPhotoFetcher{}))
	build, err := b.Build(context.Background(), doc, Options{})
	require.NoError(t, err)

	require.Equal(t, "profile-photo-1700000000000.webp", build.PhotoFile)
	payload, _ := build.Bundle.Get(build.PhotoFile)
	assert.Equal(t, base64.StdEncoding.EncodeToString(webp), payload.Content)
	assert.Equal(t, "./profile-photo-1700000000000.webp", build.Document.GeneralInfo.Photo)
}

func TestBuild_PhotoFailuresDegrade(t *testing.T) {
	tests := []struct {
		name    string
		photo   string
		fetcher PhotoFetcher
	}{
		{"fetch error", "https://old.example/profile-photo-1.webp", &stubFetcher{err: errors.New("connection refused")}},
		{"corrupt inline data", "data:image/webp;base64,!!!", nil},
		{"relative path", "./profile-photo-1.webp", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []BuilderOption
			if tt.fetcher != nil {
				opts = append(opts, WithPhotoFetcher(tt.fetcher))
			}
			doc := testDocument()
			doc.GeneralInfo.Photo = tt.photo

			build, err := newTestBuilder(t, opts...).Build(context.Background(), doc, Options{})
			require.NoError(t, err)

			assert.Equal(t, []string{types.IndexFile, types.CVDataFile}, build.Bundle.Names())
			require.Len(t, build.Recovered, 1)
			assert.Equal(t, ArtifactPhoto, build.Recovered[0].Artifact)
			assert.Empty(t, build.Document.GeneralInfo.Photo)
			assert.NotContains(t, build.HTML, "<img")
		})
	}
}

func TestBuild_PDF(t *testing.T) {
	printer := &recordingPDF{}
	doc := testDocument()
	doc.GeneralInfo.Photo = inlinePhoto

	build, err := newTestBuilder(t, WithPDFRenderer(printer)).Build(context.Background(), doc, Options{IncludePDF: true})
	require.NoError(t, err)

	assert.Equal(t, "jane-doe.pdf", build.PDFFile)
	payload, ok := build.Bundle.Get("jane-doe.pdf")
	require.True(t, ok)
	assert.Equal(t, types.PayloadBase64, payload.Kind)
	decoded, err := base64.StdEncoding.DecodeString(payload.Content)
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(decoded))

	assert.Contains(t, build.HTML, `href="jane-doe.pdf"`)

	// the print page inlines the photo and carries no analytics
	require.Len(t, printer.pages, 1)
	assert.Contains(t, printer.pages[0], `src="`+inlinePhoto+`"`)
	assert.NotContains(t, printer.pages[0], "googletagmanager")
	assert.NotContains(t, printer.pages[0], "Download CV")
}

func TestBuild_PDFFailureDegrades(t *testing.T) {
	tests := []struct {
		name    string
		printer pdf.Renderer
	}{
		{"renderer error", &recordingPDF{err: errors.New("chrome crashed")}},
		{"not a pdf", pdf.RendererFunc(func(context.Context, string) ([]byte, error) {
			return []byte("<html>"), nil
		})},
		{"no renderer", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []BuilderOption
			if tt.printer != nil {
				opts = append(opts, WithPDFRenderer(tt.printer))
			}
			build, err := newTestBuilder(t, opts...).Build(context.Background(), testDocument(), Options{IncludePDF: true})
			require.NoError(t, err)

			assert.Equal(t, []string{types.IndexFile, types.CVDataFile}, build.Bundle.Names())
			assert.Empty(t, build.PDFFile)
			require.Len(t, build.Recovered, 1)
			assert.Equal(t, ArtifactPDF, build.Recovered[0].Artifact)
			// no download link to a file that is not there
			assert.NotContains(t, build.HTML, "Download CV")
		})
	}
}

func TestBuild_UnknownTemplate(t *testing.T) {
	_, err := newTestBuilder(t).Build(context.Background(), testDocument(), Options{Template: "brutalist"})

	var unknown *rendering.UnknownTemplateError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "brutalist", unknown.Key)
}

func TestBuild_TemplateOverrideRecordedInSnapshot(t *testing.T) {
	build, err := newTestBuilder(t).Build(context.Background(), testDocument(), Options{Template: "modern"})
	require.NoError(t, err)

	assert.Equal(t, "modern", snapshotOf(t, build)["template"])
	assert.Contains(t, build.HTML, `data-theme="modern"`)
}

func TestBuild_SnapshotMirrorsRenderedDocument(t *testing.T) {
	doc := testDocument()
	doc.GeneralInfo.Photo = inlinePhoto

	build, err := newTestBuilder(t).Build(context.Background(), doc, Options{})
	require.NoError(t, err)

	payload, _ := build.Bundle.Get(types.CVDataFile)
	var decoded types.Document
	require.NoError(t, json.Unmarshal([]byte(payload.Content), &decoded))
	assert.Equal(t, build.Document.GeneralInfo, decoded.GeneralInfo)
	assert.Equal(t, build.Document.Template, decoded.Template)

	assert.NoError(t, schemas.ValidateDocumentJSON([]byte(payload.Content)))
}

func TestBuild_UniqueFilenames(t *testing.T) {
	b := newTestBuilder(t, WithPDFRenderer(&recordingPDF{}))
	seenPhotos := map[string]bool{}

	for i := 0; i < 5; i++ {
		doc := testDocument()
		doc.GeneralInfo.Photo = inlinePhoto
		build, err := b.Build(context.Background(), doc, Options{IncludePDF: true})
		require.NoError(t, err)

		names := build.Bundle.Names()
		unique := map[string]bool{}
		for _, n := range names {
			unique[n] = true
		}
		assert.Len(t, unique, len(names), "duplicate filename in %v", names)

		assert.False(t, seenPhotos[build.PhotoFile], "photo name reused: %s", build.PhotoFile)
		seenPhotos[build.PhotoFile] = true
	}
}

func TestBuild_ReferentialIntegrity(t *testing.T) {
	b := newTestBuilder(t, WithPDFRenderer(&recordingPDF{}))
	doc := testDocument()
	doc.GeneralInfo.Photo = inlinePhoto

	for _, info := range rendering.Templates() {
		t.Run(info.Key, func(t *testing.T) {
			build, err := b.Build(context.Background(), doc, Options{IncludePDF: true, Template: info.Key})
			require.NoError(t, err)

			refs, err := htmlReferences(build.HTML)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{build.PhotoFile, build.PDFFile}, refs)
			for _, ref := range refs {
				assert.True(t, build.Bundle.Has(ref), ref)
			}
		})
	}
}

func TestBuild_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestBuilder(t).Build(ctx, testDocument(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyBundle(t *testing.T) {
	snapshot := `{"generalInfo":{"fullName":"Jane","professionalTitle":"Dev","photo":"./profile-photo-1.webp"},` +
		`"experience":{"experiences":[]},"education":{"education":[]},"socials":{"socials":[]},` +
		`"analytics":{"type":"none"},"template":"minimal"}`

	t.Run("dangling references", func(t *testing.T) {
		bundle := types.NewBundle()
		require.NoError(t, bundle.Add(types.IndexFile, types.TextFile(`<img src="./profile-photo-1.webp"><a download href="jane.pdf">cv</a><a href="https://x.example">x</a>`)))
		require.NoError(t, bundle.Add(types.CVDataFile, types.TextFile(snapshot)))

		var integrity *IntegrityError
		require.ErrorAs(t, VerifyBundle(bundle), &integrity)
		assert.ElementsMatch(t, []string{
			"index.html -> jane.pdf",
			"index.html -> profile-photo-1.webp",
			"cv-data.json -> profile-photo-1.webp",
		}, integrity.Missing)
	})

	t.Run("complete", func(t *testing.T) {
		bundle := types.NewBundle()
		require.NoError(t, bundle.Add(types.IndexFile, types.TextFile(`<img src="./profile-photo-1.webp"><script src="/_vercel/insights/script.js"></script>`)))
		require.NoError(t, bundle.Add(types.CVDataFile, types.TextFile(snapshot)))
		require.NoError(t, bundle.Add("profile-photo-1.webp", types.Base64File("UklGRg==")))
		assert.NoError(t, VerifyBundle(bundle))
	})

	t.Run("snapshot off schema", func(t *testing.T) {
		bundle := types.NewBundle()
		require.NoError(t, bundle.Add(types.IndexFile, types.TextFile("<p></p>")))
		require.NoError(t, bundle.Add(types.CVDataFile, types.TextFile(`{"generalInfo":{"fullName":"Jane"}}`)))

		var buildErr *BuildError
		require.ErrorAs(t, VerifyBundle(bundle), &buildErr)
		assert.Contains(t, buildErr.Error(), "document schema")
	})

	t.Run("missing mandatory file", func(t *testing.T) {
		bundle := types.NewBundle()
		require.NoError(t, bundle.Add(types.IndexFile, types.TextFile("<p></p>")))

		var integrity *IntegrityError
		require.ErrorAs(t, VerifyBundle(bundle), &integrity)
		assert.True(t, strings.Contains(integrity.Error(), types.CVDataFile))
	})
}

func TestOutcome(t *testing.T) {
	ok := Ok(3)
	assert.True(t, ok.IsOk())
	assert.Equal(t, 3, ok.UnwrapOr(0))
	assert.Nil(t, ok.Err())

	bad := Degraded[int](ArtifactPDF, "failed", errors.New("boom"))
	assert.False(t, bad.IsOk())
	assert.Equal(t, 7, bad.UnwrapOr(7))
	assert.EqualError(t, bad.Err(), "pdf: failed: boom")

	var matched string
	bad.Match(func(int) { matched = "ok" }, func(r *Recoverable) { matched = r.Artifact })
	assert.Equal(t, ArtifactPDF, matched)
}
