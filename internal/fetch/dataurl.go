package fetch

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrNotDataURL is returned when a value is not a base64 data URL.
var ErrNotDataURL = errors.New("not a base64 data URL")

// DataURL is a decoded "data:<media type>;base64,<payload>" value.
type DataURL struct {
	MediaType string
	// Payload is the base64 text after the comma, whitespace removed.
	Payload string
}

// IsImageDataURL reports whether s is an inline image.
func IsImageDataURL(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

// IsRemoteURL reports whether s is an absolute http(s) URL.
func IsRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ParseDataURL splits a base64 data URL and checks that the payload decodes.
func ParseDataURL(s string) (*DataURL, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrNotDataURL
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, ErrNotDataURL
	}
	payload = strings.Join(strings.Fields(payload), "")
	if payload == "" {
		return nil, errors.New("empty data URL payload")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return nil, err
	}
	return &DataURL{MediaType: mediaType, Payload: payload}, nil
}
