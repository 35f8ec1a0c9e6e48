package document

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"
)

// PageSummary is a short plain-text view of one page.
type PageSummary struct {
	Page    int    `json:"page"`
	Excerpt string `json:"excerpt"`
}

// Outline extracts a text excerpt of at most excerptLen runes for every page.
// Pages whose text cannot be extracted are kept with an empty excerpt so the
// page numbering stays aligned with the chunk ranges.
func Outline(data []byte, excerptLen int) ([]PageSummary, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]PageSummary, 0, numPages)
	for i := 1; i <= numPages; i++ {
		summary := PageSummary{Page: i}
		page := reader.Page(i)
		if !page.V.IsNull() {
			if text, err := page.GetPlainText(nil); err == nil {
				summary.Excerpt = excerpt(text, excerptLen)
			}
		}
		pages = append(pages, summary)
	}
	return pages, nil
}

func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}
