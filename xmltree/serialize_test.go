package xmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRoundTripsSimpleElement(t *testing.T) {
	doc, err := ParseString(`<root id="7"><child>hi &amp; bye</child></root>`, "")
	require.NoError(t, err)
	root, ok := doc.DocumentElement()
	require.True(t, ok)

	out := Serialize(root)
	assert.Equal(t, `<root id="7"><child>hi &amp; bye</child></root>`, out)
}

func TestSerializeSelfClosesEmptyElement(t *testing.T) {
	doc, err := ParseString(`<root><empty></empty></root>`, "")
	require.NoError(t, err)
	root, _ := doc.DocumentElement()
	assert.Equal(t, `<root><empty/></root>`, Serialize(root))
}

func TestSerializeEscapesAttributesAndText(t *testing.T) {
	doc, err := ParseString(`<root a="x&#10;y"><t>a &lt; b</t></root>`, "")
	require.NoError(t, err)
	root, _ := doc.DocumentElement()
	out := Serialize(root)
	assert.Contains(t, out, `a="x&#10;y"`)
	assert.Contains(t, out, "a &lt; b")
}

func TestSerializeComment(t *testing.T) {
	doc, err := ParseString(`<root><!--note--></root>`, "")
	require.NoError(t, err)
	root, _ := doc.DocumentElement()
	assert.Equal(t, `<root><!--note--></root>`, Serialize(root))
}
