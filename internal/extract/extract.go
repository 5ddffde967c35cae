// Package extract converts fetched bytes into plain text: readability
// extraction for HTML with a goquery fallback, text extraction for PDF,
// and passthrough for plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

// ErrNoContent means the document parsed but yielded no usable text, such
// as an image-only PDF or an empty page.
var ErrNoContent = errors.New("no extractable text content")

// Text extracts plain text from body according to its declared content
// type. pageURL is the document's own URL, used to resolve relative
// references during HTML extraction.
func Text(body []byte, contentType, pageURL string) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	switch {
	case strings.HasPrefix(mediaType, "text/html"), strings.HasPrefix(mediaType, "application/xhtml+xml"):
		return fromHTML(body, pageURL)
	case strings.HasPrefix(mediaType, "application/pdf"):
		return fromPDF(body)
	case strings.HasPrefix(mediaType, "text/plain"):
		return fromPlain(body)
	}
	return "", fmt.Errorf("no extractor for content type %q", contentType)
}

// fromHTML runs readability article extraction, falling back to a plain
// goquery text walk when readability finds nothing. Pages without a
// detectable article (index pages, link lists) take the fallback path.
func fromHTML(body []byte, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err == nil {
		if text := normalize(article.TextContent); text != "" {
			if title := strings.TrimSpace(article.Title); title != "" && !strings.HasPrefix(text, title) {
				return title + "\n\n" + text, nil
			}
			return text, nil
		}
	}

	return htmlFallback(body)
}

// htmlFallback strips script and style subtrees and returns the document's
// visible text.
func htmlFallback(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	text = normalize(text)
	if text == "" {
		return "", ErrNoContent
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" && !strings.HasPrefix(text, title) {
		return title + "\n\n" + text, nil
	}
	return text, nil
}

// fromPDF extracts page text in order. Individual pages that fail to parse
// are skipped; only a document with no text at all is an error. The pdf
// library panics on some malformed inputs, so the whole walk runs under a
// recover.
func fromPDF(body []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(text)
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: PDF has no text layer", ErrNoContent)
	}
	return sb.String(), nil
}

func fromPlain(body []byte) (string, error) {
	text := normalize(string(body))
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// normalize collapses intra-line whitespace and runs of blank lines so
// extracted text stays compact regardless of source markup.
func normalize(s string) string {
	var (
		sb    strings.Builder
		blank bool
	)
	for line := range strings.Lines(s) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			blank = true
			continue
		}
		if sb.Len() > 0 {
			if blank {
				sb.WriteString("\n\n")
			} else {
				sb.WriteString("\n")
			}
		}
		blank = false
		sb.WriteString(strings.Join(fields, " "))
	}
	return sb.String()
}
