package api

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/dgallion1/pdfchat/internal/chat"
	"github.com/dgallion1/pdfchat/internal/config"
	"github.com/dgallion1/pdfchat/internal/document"
	"github.com/dgallion1/pdfchat/internal/render"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const greeting = "Ask me anything about the document!"

type turnView struct {
	Role       string
	Body       template.HTML
	References []render.Reference
}

type pageView struct {
	Title     string
	Greeting  string
	Turns     []turnView
	Blocking  string
	NeedsKey  bool
	Error     string
	Prompt    string
	Document  *Document
	Outline   []document.PageSummary
	ChatReady bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "", "")
}

// handleChatForm submits the prompt and redirects back to the transcript.
// Failures re-render the page with the error and the prompt preserved.
func (s *Server) handleChatForm(w http.ResponseWriter, r *http.Request) {
	prompt := r.FormValue("prompt")
	if _, err := s.submit(r, prompt); err != nil {
		s.renderPage(w, statusFor(err), err.Error(), prompt)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCredentialForm(w http.ResponseWriter, r *http.Request) {
	if err := s.setCredential(r.FormValue("api_key")); err != nil {
		s.renderPage(w, statusFor(err), err.Error(), "")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, errMsg, prompt string) {
	view := pageView{
		Title:    "PDF Chat with Claude",
		Greeting: greeting,
		Error:    errMsg,
		Prompt:   prompt,
		Document: s.doc,
		Outline:  s.doc.Outline,
	}

	session, err := s.chatSession()
	switch {
	case err == nil:
		view.ChatReady = true
		for _, t := range session.History() {
			view.Turns = append(view.Turns, newTurnView(t))
		}
	case errors.Is(err, config.ErrMissingCredential):
		view.NeedsKey = true
		view.Blocking = "Please enter your Anthropic API key to start chatting."
	default:
		view.Blocking = "PDF file not available at " + s.doc.Path + ": " + s.doc.Err.Error()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTmpl.Execute(w, view); err != nil {
		s.log.Error("render page", "error", err)
	}
}

func newTurnView(t chat.Turn) turnView {
	v := turnView{Role: string(t.Role)}
	if t.Role == chat.RoleAssistant {
		v.Body = render.Markdown(t.Text)
		v.References = render.References(t.Citations)
	} else {
		v.Body = template.HTML("<p>" + template.HTMLEscapeString(t.Text) + "</p>")
	}
	return v
}
