package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Well-known bundle entries.
const (
	IndexFile    = "index.html"
	CVDataFile   = "cv-data.json"
	PhotoPrefix  = "profile-photo-"
	PhotoSuffix  = ".webp"
	PDFExtension = ".pdf"
)

// PayloadKind distinguishes text payloads from binary ones carried as base64.
type PayloadKind string

// Payload kinds.
const (
	PayloadText   PayloadKind = "text"
	PayloadBase64 PayloadKind = "base64"
)

// Encoding returns the provider wire encoding for the kind.
func (k PayloadKind) Encoding() string {
	if k == PayloadBase64 {
		return "base64"
	}
	return "utf8"
}

// FilePayload is the content of one bundle entry.
type FilePayload struct {
	Kind    PayloadKind
	Content string
}

// TextFile builds a text payload.
func TextFile(content string) FilePayload {
	return FilePayload{Kind: PayloadText, Content: content}
}

// Base64File builds a base64 payload from already-encoded content.
func Base64File(encoded string) FilePayload {
	return FilePayload{Kind: PayloadBase64, Content: encoded}
}

// DuplicateFileError is returned when a filename is added to a bundle twice.
type DuplicateFileError struct {
	Name string
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("bundle already contains %q", e.Name)
}

// Bundle is an insertion-ordered mapping from filename to payload.
// Filenames are unique within a bundle.
type Bundle struct {
	order []string
	files map[string]FilePayload
}

// NewBundle creates an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{files: make(map[string]FilePayload)}
}

// Add inserts a new file. Adding an existing name fails with *DuplicateFileError.
func (b *Bundle) Add(name string, payload FilePayload) error {
	if name == "" {
		return fmt.Errorf("bundle: empty filename")
	}
	if _, exists := b.files[name]; exists {
		return &DuplicateFileError{Name: name}
	}
	b.order = append(b.order, name)
	b.files[name] = payload
	return nil
}

// Get returns the payload stored under name.
func (b *Bundle) Get(name string) (FilePayload, bool) {
	p, ok := b.files[name]
	return p, ok
}

// Has reports whether name is present.
func (b *Bundle) Has(name string) bool {
	_, ok := b.files[name]
	return ok
}

// Names returns the filenames in insertion order.
func (b *Bundle) Names() []string {
	return append([]string(nil), b.order...)
}

// Len returns the number of files.
func (b *Bundle) Len() int {
	return len(b.order)
}

// ManifestFile is one entry of the provider upload manifest.
type ManifestFile struct {
	File     string `json:"file"`
	Data     string `json:"data"`
	Encoding string `json:"encoding,omitempty"`
}

// Manifest returns the bundle in upload order. Text files carry "utf8".
func (b *Bundle) Manifest() []ManifestFile {
	files := make([]ManifestFile, 0, len(b.order))
	for _, name := range b.order {
		p := b.files[name]
		files = append(files, ManifestFile{File: name, Data: p.Content, Encoding: p.Kind.Encoding()})
	}
	return files
}

// MarshalJSON encodes the bundle as an ordered object
// {"index.html": {"data": "...", "encoding": "utf8"}, ...}.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range b.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		p := b.files[name]
		val, err := json.Marshal(struct {
			Data     string `json:"data"`
			Encoding string `json:"encoding"`
		}{p.Content, p.Kind.Encoding()})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
