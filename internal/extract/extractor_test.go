package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/mindline/internal/models"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func docxBody(paragraphs ...string) string {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0"?><w:document><w:body>`)
	for _, p := range paragraphs {
		b.WriteString(`<w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor(0)
	tests := []struct {
		name    string
		content []byte
		ext     string
		want    Text
	}{
		{"text", []byte("Hello world\nLine 2"), ".txt", Text{"Hello world\nLine 2", models.FormatPlain}},
		{"utf8", []byte("caf\xc3\xa9"), ".rst", Text{"café", models.FormatPlain}},
		{"invalid utf8", []byte("hello\x80world"), ".txt", Text{"hello�world", models.FormatPlain}},
		{"bom", []byte("\xEF\xBB\xBF# Title"), ".md", Text{"# Title", models.FormatMarkdown}},
		{"html", []byte("<p>Hi</p>"), ".html", Text{"<p>Hi</p>", models.FormatHTML}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.ext)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	e := NewExtractor(0)
	_, err := e.ExtractBytes([]byte("x"), ".xlsx")
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.False(t, e.Supported("sheet.XLSX"))
	assert.True(t, e.Supported("Notes/Plan.MD"))
}

func TestExtractBytes_docx(t *testing.T) {
	e := NewExtractor(0)

	got, err := e.ExtractBytes(zipOf(t, map[string]string{
		"word/document.xml": docxBody("Quarterly plan", "  Ship the beta  "),
	}), ".docx")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly plan\nShip the beta", got.Body)

	types := `<Types><Override ContentType="` + docxMainType + `" PartName="/word/document2.xml"/></Types>`
	got, err = e.ExtractBytes(zipOf(t, map[string]string{
		contentTypesPart:     types,
		"word/document2.xml": docxBody("from the override part"),
	}), ".docx")
	require.NoError(t, err)
	assert.Equal(t, "from the override part", got.Body)

	_, err = e.ExtractBytes([]byte("not a zip"), ".docx")
	assert.Error(t, err)

	_, err = e.ExtractBytes(zipOf(t, map[string]string{"other.xml": "x"}), ".docx")
	assert.Error(t, err)
}

func TestExtract_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# Plan\n\n- ship"), 0600))

	got, err := NewExtractor(0).Extract(path)
	require.NoError(t, err)
	assert.Equal(t, Text{"# Plan\n\n- ship", models.FormatMarkdown}, got)

	_, err = NewExtractor(4).Extract(path)
	assert.Error(t, err, "over the size limit")

	_, err = NewExtractor(0).Extract(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
