package claude

// Roles accepted by the Messages API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types.
const (
	BlockText     = "text"
	BlockDocument = "document"
)

// Message is one role-tagged turn of a Messages API request.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is either a text block or a document block.
type ContentBlock struct {
	Type      string           `json:"type"`
	Text      string           `json:"text,omitempty"`
	Source    *DocumentSource  `json:"source,omitempty"`
	Title     string           `json:"title,omitempty"`
	Citations *CitationsConfig `json:"citations,omitempty"`
}

type DocumentSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type CitationsConfig struct {
	Enabled bool `json:"enabled"`
}

// TextBlock returns a plain text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// DocumentBlock returns a base64 PDF document block.
func DocumentBlock(data, title string, citations bool) ContentBlock {
	return ContentBlock{
		Type: BlockDocument,
		Source: &DocumentSource{
			Type:      "base64",
			MediaType: "application/pdf",
			Data:      data,
		},
		Title:     title,
		Citations: &CitationsConfig{Enabled: citations},
	}
}

type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []Message `json:"messages"`
}

// Response is the decoded body of a successful Messages API call.
type Response struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Content    []ResponseBlock `json:"content"`
	Usage      Usage           `json:"usage"`
}

type ResponseBlock struct {
	Type      string     `json:"type"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// Citation is a page_location citation into a document block. Page numbers
// are relative to the cited document; EndPageNumber is exclusive.
type Citation struct {
	Type            string `json:"type"`
	CitedText       string `json:"cited_text"`
	DocumentIndex   *int   `json:"document_index"`
	DocumentTitle   string `json:"document_title"`
	StartPageNumber int    `json:"start_page_number"`
	EndPageNumber   int    `json:"end_page_number"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorEnvelope struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
