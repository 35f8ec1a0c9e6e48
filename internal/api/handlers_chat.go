package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/pdfchat/internal/chat"
	"github.com/dgallion1/pdfchat/internal/config"
)

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}

	turn, err := s.submit(r, req.Message)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, err := s.chatSession()
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": session.State().String(),
		"turns": session.History(),
	})
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.setCredential(req.APIKey); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// submit runs one chat turn. The remote call is detached from the request
// context so a closed browser tab does not abort a turn halfway; the client
// timeout still bounds it.
func (s *Server) submit(r *http.Request, text string) (chat.Turn, error) {
	session, err := s.chatSession()
	if err != nil {
		return chat.Turn{}, err
	}
	turn, err := session.Submit(context.WithoutCancel(r.Context()), text)
	if err != nil {
		s.log.Warn("chat submit failed", "error", err)
	}
	return turn, err
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	var chatErr *chat.Error
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt), errors.Is(err, errEmptyCredential):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrBusy), errors.Is(err, errCredentialSet):
		return http.StatusConflict
	case errors.As(err, &chatErr):
		return http.StatusBadGateway
	case errors.Is(err, errDocumentUnavailable), errors.Is(err, config.ErrMissingCredential):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
