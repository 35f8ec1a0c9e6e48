package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/pdfchat/internal/chat"
	"github.com/dgallion1/pdfchat/internal/claude"
	"github.com/dgallion1/pdfchat/internal/config"
)

var (
	errDocumentUnavailable = errors.New("document unavailable")
	errCredentialSet       = errors.New("an API key is already configured")
	errEmptyCredential     = errors.New("api key cannot be empty")
)

// ClientFactory builds a Claude client for an API key.
type ClientFactory func(apiKey string) *claude.Client

// Server is the HTTP surface of the chat session.
type Server struct {
	router    chi.Router
	log       *slog.Logger
	cfg       config.Config
	doc       *Document
	newClient ClientFactory

	mu      sync.RWMutex
	claude  *claude.Client
	session *chat.Orchestrator
}

// NewServer creates and configures the HTTP server. When cfg carries an API
// key the chat session is started immediately; otherwise it starts once a
// key is entered.
func NewServer(cfg config.Config, doc *Document, newClient ClientFactory, log *slog.Logger) *Server {
	s := &Server{
		log:       log,
		cfg:       cfg,
		doc:       doc,
		newClient: newClient,
	}
	if cfg.AnthropicAPIKey != "" {
		_ = s.start(cfg.AnthropicAPIKey)
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	// Everything but the health check sits behind the service key when set.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Get("/", s.handleIndex)
		r.Post("/chat", s.handleChatForm)
		r.Post("/credential", s.handleCredentialForm)

		r.Route("/api", func(r chi.Router) {
			r.Post("/chat", s.handleChat)
			r.Get("/history", s.handleHistory)
			r.Get("/document", s.handleDocument)
			r.Get("/stats/llm", s.handleLLMStats)
			r.Post("/credential", s.handleCredential)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// start creates the Claude client and, when the document is available, the
// chat session. It fails if a client already exists.
func (s *Server) start(apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claude != nil {
		return errCredentialSet
	}
	s.claude = s.newClient(apiKey)
	if s.doc.Err == nil {
		s.session = chat.NewOrchestrator(s.claude, s.doc.Chunks, s.log)
	}
	s.log.Info("claude client ready", "model", s.claude.Model(), "chunks", len(s.doc.Chunks))
	return nil
}

// setCredential starts the session with a key entered at runtime.
func (s *Server) setCredential(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errEmptyCredential
	}
	return s.start(apiKey)
}

// chatSession returns the running session, or the reason there is none.
func (s *Server) chatSession() (*chat.Orchestrator, error) {
	if s.doc.Err != nil {
		return nil, fmt.Errorf("%w: %w", errDocumentUnavailable, s.doc.Err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, config.ErrMissingCredential
	}
	return s.session, nil
}

func (s *Server) client() *claude.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claude
}

// Close releases the Claude client's connections.
func (s *Server) Close() {
	if c := s.client(); c != nil {
		c.Close()
	}
}
