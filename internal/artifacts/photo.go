package artifacts

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/jonathan/cv-publisher/internal/fetch"
	"github.com/jonathan/cv-publisher/internal/naming"
)

// Sub-artifact names reported in Recoverable.
const (
	ArtifactPhoto = "photo"
	ArtifactPDF   = "pdf"
)

// defaultPhotoType is assumed when fetched bytes do not sniff as an image.
const defaultPhotoType = "image/webp"

// PhotoFetcher downloads a previously published photo.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, url string) ([]byte, error)
}

// HTTPPhotoFetcher fetches photos over HTTP.
type HTTPPhotoFetcher struct {
	Options *fetch.Options
}

// FetchPhoto downloads url. An empty body is an error.
func (f HTTPPhotoFetcher) FetchPhoto(ctx context.Context, url string) ([]byte, error) {
	res, err := fetch.URL(ctx, url, f.Options)
	if err != nil {
		return nil, err
	}
	if len(res.Body) == 0 {
		return nil, &fetch.Error{URL: url, Message: "empty body"}
	}
	return res.Body, nil
}

// photo is a bundled profile photo.
type photo struct {
	Name      string
	MediaType string
	// Payload is the base64 encoded image.
	Payload string
}

// dataURL inlines the photo for pages that cannot resolve bundle paths.
func (p *photo) dataURL() string {
	return "data:" + p.MediaType + ";base64," + p.Payload
}

// processPhoto resolves the document's photo source into a bundle entry.
// A nil photo with an Ok outcome means the document has no photo.
func (b *Builder) processPhoto(ctx context.Context, src string) Outcome[*photo] {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return Ok[*photo](nil)

	case fetch.IsImageDataURL(src):
		du, err := fetch.ParseDataURL(src)
		if err != nil {
			return Degraded[*photo](ArtifactPhoto, "invalid inline image", err)
		}
		return Ok(&photo{
			Name:      naming.PhotoFilename(b.stamper.Next()),
			MediaType: du.MediaType,
			Payload:   du.Payload,
		})

	case fetch.IsRemoteURL(src):
		data, err := b.photos.FetchPhoto(ctx, src)
		if err != nil {
			return Degraded[*photo](ArtifactPhoto, "could not fetch published photo", err)
		}
		mediaType := http.DetectContentType(data)
		if !strings.HasPrefix(mediaType, "image/") {
			mediaType = defaultPhotoType
		}
		return Ok(&photo{
			Name:      naming.PhotoFilename(b.stamper.Next()),
			MediaType: mediaType,
			Payload:   base64.StdEncoding.EncodeToString(data),
		})

	default:
		return Degraded[*photo](ArtifactPhoto, "unsupported photo source", errors.New(truncate(src, 64)))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
