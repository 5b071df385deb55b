package xslt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sderkacs/xpvm/core"
	"github.com/sderkacs/xpvm/xmltree"
)

const stylesheetSrc = `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:template match="/catalog">
    <xsl:for-each select="book">
      <xsl:value-of select="title"/>
    </xsl:for-each>
  </xsl:template>
</xsl:stylesheet>`

const catalogSrc = `<catalog>
  <book><title>Go in Action</title></book>
  <book><title>The Go Programming Language</title></book>
</catalog>`

func TestParseStylesheetTemplates(t *testing.T) {
	doc, err := xmltree.ParseString(stylesheetSrc, "")
	require.NoError(t, err)
	ss, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, ss.Templates, 1)
	assert.Equal(t, "/catalog", ss.Templates[0].Match)
	require.Len(t, ss.Templates[0].Body, 1)
	_, ok := ss.Templates[0].Body[0].(ForEach)
	assert.True(t, ok, "expected the template body to be a single xsl:for-each")
}

func TestParseRejectsNonStylesheetDocument(t *testing.T) {
	doc, err := xmltree.ParseString(`<root/>`, "")
	require.NoError(t, err)
	_, err = Parse(doc)
	assert.Error(t, err)
}

func TestParseTemplateRequiresMatchOrName(t *testing.T) {
	doc, err := xmltree.ParseString(`<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:template><xsl:value-of select="."/></xsl:template>
</xsl:stylesheet>`, "")
	require.NoError(t, err)
	_, err = Parse(doc)
	assert.Error(t, err)
}

func setupExecute(t *testing.T, stylesheet, input string) core.Sequence {
	t.Helper()
	ssDoc, err := xmltree.ParseString(stylesheet, "")
	require.NoError(t, err)
	ss, err := Parse(ssDoc)
	require.NoError(t, err)

	inDoc, err := xmltree.ParseString(input, "")
	require.NoError(t, err)

	static := core.NewStaticContext()
	docs := core.NewDocumentSet()
	docs.Add(inDoc)
	dctx := core.NewDynamicContext(static, docs)

	seq, err := Execute(ss, static, dctx)
	require.NoError(t, err)
	return seq
}

func TestExecuteValueOfOverForEach(t *testing.T) {
	seq := setupExecute(t, stylesheetSrc, catalogSrc)
	assert.Equal(t, "Go in Action The Go Programming Language", seq.String())
}

func TestExecuteIfAndChoose(t *testing.T) {
	const ss = `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:template match="/catalog">
    <xsl:for-each select="book">
      <xsl:choose>
        <xsl:when test="price &gt; 40"><xsl:value-of select="'expensive'"/></xsl:when>
        <xsl:otherwise><xsl:value-of select="'cheap'"/></xsl:otherwise>
      </xsl:choose>
    </xsl:for-each>
  </xsl:template>
</xsl:stylesheet>`
	const in = `<catalog>
    <book><price>39.99</price></book>
    <book><price>44.99</price></book>
  </catalog>`
	seq := setupExecute(t, ss, in)
	assert.Equal(t, "cheap expensive", seq.String())
}

func TestExecuteVariableAndCallTemplate(t *testing.T) {
	const ss = `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:template match="/catalog">
    <xsl:variable name="greeting" select="'hello'"/>
    <xsl:call-template name="shout"/>
  </xsl:template>
  <xsl:template name="shout">
    <xsl:value-of select="'loud'"/>
  </xsl:template>
</xsl:stylesheet>`
	seq := setupExecute(t, ss, catalogSrc)
	assert.Equal(t, "loud", seq.String())
}

func TestExecuteSequenceKeepsNodes(t *testing.T) {
	const ss = `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:template match="/catalog">
    <xsl:sequence select="book/title"/>
  </xsl:template>
</xsl:stylesheet>`
	seq := setupExecute(t, ss, catalogSrc)
	require.Equal(t, 2, seq.Len())
	for _, it := range seq {
		_, ok := it.(core.Node)
		assert.True(t, ok, "xsl:sequence should preserve node identity, not atomize")
	}
}
