package chat

import "time"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation.
type Turn struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
	CreatedAt time.Time  `json:"created_at"`
}

// Citation is a page reference resolved against the source document.
// Pages are absolute, 1-indexed and inclusive.
type Citation struct {
	DocumentTitle string `json:"document_title"`
	StartPage     int    `json:"start_page"`
	EndPage       int    `json:"end_page"`
	QuotedText    string `json:"quoted_text"`
}

// History is the ordered list of turns. It is not safe for concurrent use;
// the Orchestrator guards it.
type History struct {
	turns []Turn
}

func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t)
}

func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of the history.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// truncate drops every turn after the first n.
func (h *History) truncate(n int) {
	if n < 0 || n >= len(h.turns) {
		return
	}
	clear(h.turns[n:])
	h.turns = h.turns[:n]
}
