package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDocumentsEmptyGlobReturnsEmptySet(t *testing.T) {
	ds, err := loadDocuments("")
	require.NoError(t, err)
	assert.Empty(t, ds.Documents)
}

func TestLoadDocumentsExpandsGlobAndParsesEachFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.xml", "b.xml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`<root/>`), 0o644))
	}

	ds, err := loadDocuments(filepath.Join(dir, "*.xml"))
	require.NoError(t, err)
	assert.Len(t, ds.Documents, 2)
}

func TestLoadDocumentsRejectsMalformedXML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.xml"), []byte(`<root>`), 0o644))

	_, err := loadDocuments(filepath.Join(dir, "*.xml"))
	assert.Error(t, err)
}

func TestFirstDocumentElementPicksFirstLoadedDoc(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.xml"), []byte(`<catalog/>`), 0o644))

	ds, err := loadDocuments(filepath.Join(dir, "*.xml"))
	require.NoError(t, err)

	el, ok := firstDocumentElement(ds)
	require.True(t, ok)
	assert.Equal(t, "catalog", el.NodeName().Local)
}

func TestFirstDocumentElementEmptySet(t *testing.T) {
	ds, err := loadDocuments("")
	require.NoError(t, err)
	_, ok := firstDocumentElement(ds)
	assert.False(t, ok)
}
