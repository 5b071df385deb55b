package xmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sderkacs/xpvm/core"
)

const sampleDoc = `<?xml version="1.0"?>
<!-- top comment -->
<catalog xmlns="urn:example:catalog" xmlns:a="urn:example:attr" a:rev="3">
  <book id="b1">
    <title>Go in Action</title>
    <price>39.99</price>
  </book>
  <book id="b2">
    <title>The Go Programming Language</title>
    <price>44.99</price>
  </book>
</catalog>
`

func TestParseDocumentStructure(t *testing.T) {
	doc, err := ParseString(sampleDoc, "mem://sample")
	require.NoError(t, err)
	assert.Equal(t, "mem://sample", doc.BaseURI())

	root, ok := doc.DocumentElement()
	require.True(t, ok)
	assert.Equal(t, "catalog", root.NodeName().Local)
	assert.Equal(t, "urn:example:catalog", root.NodeName().URI)

	rev, ok := root.Attr("rev")
	assert.False(t, ok, "rev is namespaced (a:rev), Attr only finds unprefixed attributes")
	assert.Empty(t, rev)

	var books []*Element
	for _, k := range root.Children() {
		if el, ok := k.(*Element); ok {
			books = append(books, el)
		}
	}
	require.Len(t, books, 2)
	assert.Equal(t, "book", books[0].NodeName().Local)
}

func TestParseParentAndSiblingLinks(t *testing.T) {
	doc, err := ParseString(sampleDoc, "")
	require.NoError(t, err)
	root, ok := doc.DocumentElement()
	require.True(t, ok)

	parent, ok := root.Parent()
	require.True(t, ok)
	assert.Same(t, doc, parent)

	var books []core.Node
	for _, k := range root.Children() {
		if _, ok := k.(*Element); ok {
			books = append(books, k)
		}
	}
	require.Len(t, books, 2)

	b0parent, ok := books[0].Parent()
	require.True(t, ok)
	assert.True(t, b0parent.SameNode(root))

	following := books[0].FollowingSiblings()
	require.Len(t, following, 1)
	assert.True(t, following[0].SameNode(books[1]))

	preceding := books[1].PrecedingSiblings()
	require.Len(t, preceding, 1)
	assert.True(t, preceding[0].SameNode(books[0]))
}

func TestParseDocumentOrderIsMonotonic(t *testing.T) {
	doc, err := ParseString(sampleDoc, "")
	require.NoError(t, err)
	root, _ := doc.DocumentElement()

	var keys []uint64
	var walk func(n core.Node)
	walk = func(n core.Node) {
		keys = append(keys, n.DocumentOrderKey())
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)

	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i], "document order key must strictly increase")
	}
}

func TestParseStringValue(t *testing.T) {
	doc, err := ParseString(sampleDoc, "")
	require.NoError(t, err)
	root, _ := doc.DocumentElement()
	sv := root.StringValue()
	assert.Contains(t, sv, "Go in Action")
	assert.Contains(t, sv, "39.99")
	assert.NotContains(t, sv, "top comment")
}

func TestParseNamespaceDeclarationsAttached(t *testing.T) {
	doc, err := ParseString(sampleDoc, "")
	require.NoError(t, err)
	root, _ := doc.DocumentElement()
	nsps := root.Namespaces()
	require.NotEmpty(t, nsps)

	found := false
	for _, n := range nsps {
		if n.NodeName().Local == "a" && n.StringValue() == "urn:example:attr" {
			found = true
		}
	}
	assert.True(t, found, "expected xmlns:a declaration as a namespace node")
}

func TestParseTopLevelCommentParentsToDocument(t *testing.T) {
	doc, err := ParseString(sampleDoc, "")
	require.NoError(t, err)

	var comment core.Node
	for _, k := range doc.Children() {
		if c, ok := k.(*Comment); ok {
			comment = c
		}
	}
	require.NotNil(t, comment, "expected the top-level comment to be a document child")
	parent, ok := comment.Parent()
	require.True(t, ok)
	assert.Same(t, doc, parent)
}

func TestParseEmptyElementRoundTrip(t *testing.T) {
	doc, err := ParseString(`<root/>`, "")
	require.NoError(t, err)
	root, ok := doc.DocumentElement()
	require.True(t, ok)
	assert.Empty(t, root.Children())
	assert.Equal(t, "", root.StringValue())
}
