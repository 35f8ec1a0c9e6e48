package chat

import (
	"strings"

	"github.com/dgallion1/pdfchat/internal/chunker"
	"github.com/dgallion1/pdfchat/internal/claude"
)

// buildMessages renders the conversation into Messages API turns. Every chunk
// is attached as a document block at the start of the first user message; the
// API keeps no state between calls, so the documents go out on every request.
// Assistant turns carry their citation quotes as extra text blocks so the
// model keeps that context on later turns.
func buildMessages(chunks []chunker.Chunk, turns []Turn) []claude.Message {
	var msgs []claude.Message
	docsAttached := false

	for _, t := range turns {
		var blocks []claude.ContentBlock
		if t.Role == RoleUser && !docsAttached {
			for _, ch := range chunks {
				blocks = append(blocks, claude.DocumentBlock(ch.Data, ch.Title, ch.CitationsEnabled))
			}
			docsAttached = true
		}

		if strings.TrimSpace(t.Text) != "" {
			blocks = append(blocks, claude.TextBlock(t.Text))
		}
		if t.Role == RoleAssistant {
			for _, c := range t.Citations {
				if c.QuotedText != "" {
					blocks = append(blocks, claude.TextBlock(c.QuotedText))
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}

		// Consecutive turns of one role are merged; the API expects roles to alternate.
		role := string(t.Role)
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
			continue
		}
		msgs = append(msgs, claude.Message{Role: role, Content: blocks})
	}
	return msgs
}

// requestShape summarises a request for debug logging without the payloads.
type requestShape struct {
	Messages   int
	Documents  int
	TextBlocks int
	TextTokens int
}

func shapeOf(msgs []claude.Message) requestShape {
	s := requestShape{Messages: len(msgs)}
	for _, m := range msgs {
		for _, b := range m.Content {
			switch b.Type {
			case claude.BlockDocument:
				s.Documents++
			case claude.BlockText:
				s.TextBlocks++
				s.TextTokens += EstimateTokens(b.Text)
			}
		}
	}
	return s
}
