package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_AddKeepsOrderAndRejectsDuplicates(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Add(IndexFile, TextFile("<html></html>")))
	require.NoError(t, b.Add(CVDataFile, TextFile("{}")))
	require.NoError(t, b.Add("jane-doe.pdf", Base64File("JVBERi0=")))

	err := b.Add(IndexFile, TextFile("again"))
	var dup *DuplicateFileError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, IndexFile, dup.Name)
	assert.Error(t, b.Add("", TextFile("x")))

	assert.Equal(t, []string{IndexFile, CVDataFile, "jane-doe.pdf"}, b.Names())
	assert.Equal(t, 3, b.Len())
	assert.True(t, b.Has(CVDataFile))
	assert.False(t, b.Has("missing"))

	p, ok := b.Get(IndexFile)
	require.True(t, ok)
	assert.Equal(t, "<html></html>", p.Content, "duplicate add leaves the first payload")
}

func TestBundle_Manifest(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Add(IndexFile, TextFile("<html></html>")))
	require.NoError(t, b.Add("profile-photo-1.webp", Base64File("UklGRg==")))

	assert.Equal(t, []ManifestFile{
		{File: IndexFile, Data: "<html></html>", Encoding: "utf8"},
		{File: "profile-photo-1.webp", Data: "UklGRg==", Encoding: "base64"},
	}, b.Manifest())
}

func TestBundle_MarshalJSONKeepsOrder(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Add(CVDataFile, TextFile("{}")))
	require.NoError(t, b.Add(IndexFile, TextFile("<p>")))

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(data), `"cv-data.json"`), strings.Index(string(data), `"index.html"`))

	var decoded map[string]ManifestFile
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ManifestFile{Data: "{}", Encoding: "utf8"}, decoded[CVDataFile])
	assert.Equal(t, ManifestFile{Data: "<p>", Encoding: "utf8"}, decoded[IndexFile])
}
