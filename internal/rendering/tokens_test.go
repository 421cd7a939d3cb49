package rendering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClassTokens(t *testing.T) {
	markup := `<html><body class="transition-colors">
<div class="flex  items-center md:flex">
<span class="flex text-sm">x</span>
<svg class="size-4 inline" viewBox="0 0 24 24"><path d="M0 0"/></svg>
<p>no class</p>
<p class="">empty</p>
</div></body></html>`

	tokens, err := ExtractClassTokens(markup)
	require.NoError(t, err)
	assert.Equal(t, []string{"flex", "inline", "items-center", "md:flex", "size-4", "text-sm", "transition-colors"}, tokens)
}

func TestExtractClassTokens_NoClasses(t *testing.T) {
	tokens, err := ExtractClassTokens("<p>plain</p>")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
