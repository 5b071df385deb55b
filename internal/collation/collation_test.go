package collation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sderkacs/xpvm/core"
)

func TestCodepointOrdersByRawUnicodeValue(t *testing.T) {
	assert.True(t, Codepoint.Compare("Zebra", "apple") < 0, "uppercase Z sorts before lowercase a in codepoint order")
	assert.True(t, Codepoint.Compare("apple", "banana") < 0)
	assert.True(t, Codepoint.Equal("same", "same"))
	assert.False(t, Codepoint.Equal("same", "Same"))
}

func TestForLanguageBuildsAWorkingCollator(t *testing.T) {
	sv := ForLanguage("sv")
	require.NotNil(t, sv)
	assert.Equal(t, 0, sv.Compare("apple", "apple"))
	assert.True(t, sv.Equal("apple", "apple"))
	assert.True(t, sv.Compare("apple", "banana") < 0)
}

func TestForLanguageFallsBackOnUnparseableTag(t *testing.T) {
	c := ForLanguage("not-a-real-tag-!!!")
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Compare("same", "same"))
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry("de", "fr")

	c, ok := r.Lookup(CodepointURI)
	require.True(t, ok)
	assert.Same(t, Codepoint, c)

	_, ok = r.Lookup("urn:xpvm:collation:de")
	assert.True(t, ok)

	_, ok = r.Lookup("urn:xpvm:collation:unknown")
	assert.False(t, ok)
}

func TestRegistryInstallPopulatesMap(t *testing.T) {
	r := NewRegistry("en")
	dest := make(map[string]core.Collation)
	r.Install(dest)

	_, ok := dest[CodepointURI]
	assert.True(t, ok)
	_, ok = dest["urn:xpvm:collation:en"]
	assert.True(t, ok)
}
