package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrNoText = errors.New("pdf has no extractable text")

// ExtractText returns the plain text of a PDF, one "[page N]" marked section per page
// that has text. Pages that fail to decode are skipped; the result is ErrNoText only
// when no page yields anything.
func ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoText
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}

	fonts := make(map[string]*pdf.Font)
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := pageText(page, fonts)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[page %d]\n", i)
		b.WriteString(strings.TrimSpace(text))
	}

	if b.Len() == 0 {
		return "", ErrNoText
	}
	return b.String(), nil
}

// pageText recovers from the panics the pdf package raises on malformed content streams.
func pageText(page pdf.Page, fonts map[string]*pdf.Font) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode page failed: %v", r)
		}
	}()
	return page.GetPlainText(fonts)
}
