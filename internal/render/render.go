// Package render turns chat turns into HTML for the transcript page.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/pdfchat/internal/chat"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// Markdown converts assistant markdown to HTML. Raw HTML in the source is
// dropped by goldmark's default renderer.
func Markdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

// Reference is one display line of a citation list.
type Reference struct {
	Number int
	Source string
	Pages  string
	Quote  string
}

// References formats citations the way the transcript lists them.
func References(citations []chat.Citation) []Reference {
	refs := make([]Reference, 0, len(citations))
	for i, c := range citations {
		source := "the document"
		if c.DocumentTitle != "" {
			source = c.DocumentTitle
		}
		refs = append(refs, Reference{
			Number: i + 1,
			Source: source,
			Pages:  Pages(c.StartPage, c.EndPage),
			Quote:  c.QuotedText,
		})
	}
	return refs
}

// Pages renders "page N" or "pages N-M".
func Pages(start, end int) string {
	if end <= start {
		return fmt.Sprintf("page %d", start)
	}
	return fmt.Sprintf("pages %d-%d", start, end)
}

// String renders the reference as plain text.
func (r Reference) String() string {
	return fmt.Sprintf("%d. From %s (%s): %s", r.Number, r.Source, r.Pages, r.Quote)
}
