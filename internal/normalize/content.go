package normalize

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/hyperjump/mindline/internal/models"
)

// StripHTML returns the visible text of an HTML document or fragment.
// Block elements and <br> become line breaks; scripts and styles are dropped.
func StripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, head, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, blockquote, h1, h2, h3, h4, h5, h6").AppendHtml("\n")
	return tidyLines(doc.Text()), nil
}

var (
	mdFence    = regexp.MustCompile("(?m)^\\s*(```|~~~).*$")
	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeading  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	mdQuote    = regexp.MustCompile(`(?m)^\s*>\s?`)
	mdBullet   = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s+(?:\[[ xX]\]\s+)?`)
	mdRule     = regexp.MustCompile(`(?m)^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	mdEmphasis = regexp.MustCompile(`(^|[\s(\[])(\*\*|__|\*|_|~~)([^*_~\n]+?)(\*\*|__|\*|_|~~)`)
	mdCode     = regexp.MustCompile("`([^`]*)`")
	mdTag      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// StripMarkdown removes markdown syntax and keeps the text.
func StripMarkdown(md string) string {
	s := mdFence.ReplaceAllString(md, "")
	s = mdImage.ReplaceAllString(s, "$1")
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdRule.ReplaceAllString(s, "")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdQuote.ReplaceAllString(s, "")
	s = mdBullet.ReplaceAllString(s, "")
	s = mdEmphasis.ReplaceAllString(s, "$1$3")
	s = mdCode.ReplaceAllString(s, "$1")
	s = mdTag.ReplaceAllString(s, "")
	return tidyLines(s)
}

// HTMLToText converts note HTML to markdown first so that list and heading
// structure survives as line breaks, then strips the markdown.
func HTMLToText(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert html: %w", err)
	}
	return StripMarkdown(md), nil
}

// FlattenTranscript joins meeting turns into "Speaker: text" lines.
func FlattenTranscript(turns []models.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if sp := strings.TrimSpace(t.Speaker); sp != "" {
			b.WriteString(sp)
			b.WriteString(": ")
		}
		b.WriteString(text)
	}
	return b.String()
}

// tidyLines normalizes line endings, trims every line, collapses inner runs of
// spaces and keeps at most one blank line between paragraphs.
func tidyLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
