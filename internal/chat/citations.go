package chat

import (
	"unicode/utf8"

	"github.com/dgallion1/pdfchat/internal/chunker"
	"github.com/dgallion1/pdfchat/internal/claude"
)

// MaxQuoteLen is the number of characters of cited text kept on a Citation.
const MaxQuoteLen = 150

// TruncateQuote shortens s to MaxQuoteLen characters and marks the cut with "...".
func TruncateQuote(s string) string {
	if utf8.RuneCountInString(s) <= MaxQuoteLen {
		return s
	}
	return string([]rune(s)[:MaxQuoteLen]) + "..."
}

// reconcile maps a citation whose pages are relative to one chunk onto the
// page numbers of the whole document.
func reconcile(c claude.Citation, chunks []chunker.Chunk) Citation {
	start := max(c.StartPageNumber, 1)
	// The API reports end_page_number exclusive.
	end := max(c.EndPageNumber-1, start)

	out := Citation{
		DocumentTitle: c.DocumentTitle,
		StartPage:     start,
		EndPage:       end,
		QuotedText:    TruncateQuote(c.CitedText),
	}

	chunk, ok := citedChunk(c, chunks)
	if !ok {
		return out
	}
	offset := chunk.PageStart - 1
	out.DocumentTitle = chunk.Title
	out.StartPage = min(offset+start, chunk.PageEnd)
	out.EndPage = min(offset+end, chunk.PageEnd)
	return out
}

func citedChunk(c claude.Citation, chunks []chunker.Chunk) (chunker.Chunk, bool) {
	if c.DocumentIndex != nil {
		if i := *c.DocumentIndex; i >= 0 && i < len(chunks) {
			return chunks[i], true
		}
	}
	for _, ch := range chunks {
		if c.DocumentTitle != "" && ch.Title == c.DocumentTitle {
			return ch, true
		}
	}
	return chunker.Chunk{}, false
}
