package api

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/dgallion1/pdfchat/internal/chunker"
	"github.com/dgallion1/pdfchat/internal/document"
)

const outlineExcerptLen = 160

// Document is the chunked PDF the session talks about. Err is set when the
// document could not be loaded; chat is unavailable in that case.
type Document struct {
	Path        string
	Name        string
	ContentHash string
	Chunks      []chunker.Chunk
	Outline     []document.PageSummary
	Err         error
}

// LoadDocument reads and chunks the PDF at path. Load and chunking failures
// are recorded on the result rather than returned; a missing outline is only
// logged.
func LoadDocument(ch *chunker.Chunker, path string, log *slog.Logger) *Document {
	doc := &Document{Path: path, Name: filepath.Base(path)}

	src, err := document.Load(path)
	if err != nil {
		doc.Err = err
		return doc
	}
	doc.ContentHash = src.ContentHash

	chunks, err := ch.ChunkSource(src)
	if err != nil {
		doc.Err = err
		return doc
	}
	doc.Chunks = chunks

	outline, err := document.Outline(src.Data, outlineExcerptLen)
	if err != nil {
		log.Warn("page outline unavailable", "path", path, "error", err)
	}
	doc.Outline = outline
	return doc
}

// Pages returns the total page count covered by the chunks.
func (d *Document) Pages() int {
	if len(d.Chunks) == 0 {
		return 0
	}
	return d.Chunks[len(d.Chunks)-1].PageEnd
}

type chunkView struct {
	Index            int    `json:"index"`
	Title            string `json:"title"`
	PageStart        int    `json:"page_start"`
	PageEnd          int    `json:"page_end"`
	CitationsEnabled bool   `json:"citations_enabled"`
	PayloadBytes     int    `json:"payload_bytes"`
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.doc.Err != nil {
		jsonError(w, s.doc.Err.Error(), http.StatusServiceUnavailable)
		return
	}

	chunks := make([]chunkView, 0, len(s.doc.Chunks))
	for _, c := range s.doc.Chunks {
		chunks = append(chunks, chunkView{
			Index:            c.Index,
			Title:            c.Title,
			PageStart:        c.PageStart,
			PageEnd:          c.PageEnd,
			CitationsEnabled: c.CitationsEnabled,
			PayloadBytes:     len(c.Data),
		})
	}
	outline := s.doc.Outline
	if outline == nil {
		outline = []document.PageSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":         s.doc.Name,
		"content_hash": s.doc.ContentHash,
		"pages":        s.doc.Pages(),
		"chunks":       chunks,
		"outline":      outline,
	})
}
