package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultPart  = "word/document.xml"
	contentTypesPart = "[Content_Types].xml"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// overrideTag matches one <Override .../> element of [Content_Types].xml.
	overrideTag = regexp.MustCompile(`<Override\s[^>]*>`)
	partNameRe  = regexp.MustCompile(`PartName="([^"]+)"`)
	// docxRunOrBreak matches text runs and paragraph ends, in document order.
	docxRunOrBreak = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|</w:p>`)
)

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, nil
}

// docxMainPart returns the main document part named in [Content_Types].xml,
// whatever the attribute order, or the conventional word/document.xml.
func docxMainPart(zr *zip.Reader) string {
	types, err := readZipEntry(zr, contentTypesPart)
	if err != nil || types == nil {
		return docxDefaultPart
	}
	for _, o := range overrideTag.FindAllString(string(types), -1) {
		if !strings.Contains(o, `ContentType="`+docxMainType+`"`) {
			continue
		}
		if m := partNameRe.FindStringSubmatch(o); m != nil {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return docxDefaultPart
}

// extractDOCX returns the text runs of a .docx file, one line per paragraph.
// Runs are matched with any attributes because real documents carry rsid and
// xml:space attributes on nearly every element.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	part := docxMainPart(zr)
	doc, err := readZipEntry(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: read %s: %w", part, err)
	}
	if doc == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", part)
	}

	var b strings.Builder
	for _, m := range docxRunOrBreak.FindAllStringSubmatch(string(doc), -1) {
		if m[0] == "</w:p>" {
			b.WriteByte('\n')
			continue
		}
		b.WriteString(m[1])
	}
	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n"), nil
}
