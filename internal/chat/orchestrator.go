package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/pdfchat/internal/chunker"
	"github.com/dgallion1/pdfchat/internal/claude"
)

// Completer sends a rendered conversation to the remote model.
type Completer interface {
	Complete(ctx context.Context, messages []claude.Message) (*claude.Response, error)
}

// State is the turn-level state of the orchestrator.
type State int

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	if s == AwaitingResponse {
		return "awaiting_response"
	}
	return "idle"
}

// Orchestrator owns one conversation about one chunked document.
type Orchestrator struct {
	mu      sync.Mutex
	state   State
	history History

	chunks []chunker.Chunk
	llm    Completer
	log    *slog.Logger
	now    func() time.Time
}

func NewOrchestrator(llm Completer, chunks []chunker.Chunk, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		chunks: chunks,
		llm:    llm,
		log:    log,
		now:    time.Now,
	}
}

// Submit sends userText with the full history and appends the reply. On
// failure the pending user turn is removed again and a *Error is returned.
func (o *Orchestrator) Submit(ctx context.Context, userText string) (Turn, error) {
	if strings.TrimSpace(userText) == "" {
		return Turn{}, ErrEmptyPrompt
	}

	o.mu.Lock()
	if o.state != Idle {
		o.mu.Unlock()
		return Turn{}, ErrBusy
	}
	o.state = AwaitingResponse
	before := o.history.Len()
	o.history.Append(o.newTurn(RoleUser, userText, nil))
	msgs := buildMessages(o.chunks, o.history.Turns())
	o.mu.Unlock()

	shape := shapeOf(msgs)
	o.log.Debug("claude request",
		"messages", shape.Messages,
		"documents", shape.Documents,
		"text_blocks", shape.TextBlocks,
		"text_tokens_est", shape.TextTokens,
	)

	resp, err := o.llm.Complete(ctx, msgs)
	var reply Turn
	if err == nil {
		reply, err = o.assistantTurn(resp)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = Idle

	if err != nil {
		o.history.truncate(before)
		o.log.Warn("submit failed, pending turn rolled back", "error", err, "history", o.history.Len())
		return Turn{}, classify(err)
	}
	o.history.Append(reply)
	return reply, nil
}

// assistantTurn concatenates the text blocks of resp and resolves their citations.
func (o *Orchestrator) assistantTurn(resp *claude.Response) (Turn, error) {
	if resp == nil || len(resp.Content) == 0 {
		return Turn{}, claude.ErrEmptyResponse
	}
	o.log.Debug("claude response",
		"id", resp.ID,
		"stop_reason", resp.StopReason,
		"blocks", len(resp.Content),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)

	var text strings.Builder
	citations := []Citation{}
	for _, block := range resp.Content {
		if block.Type != claude.BlockText {
			continue
		}
		text.WriteString(block.Text)
		for _, c := range block.Citations {
			citations = append(citations, reconcile(c, o.chunks))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Turn{}, claude.ErrEmptyResponse
	}
	return o.newTurn(RoleAssistant, text.String(), citations), nil
}

func (o *Orchestrator) newTurn(role Role, text string, citations []Citation) Turn {
	if citations == nil {
		citations = []Citation{}
	}
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Citations: citations,
		CreatedAt: o.now(),
	}
}

func classify(err error) *Error {
	if errors.Is(err, claude.ErrEmptyResponse) {
		return &Error{Kind: KindEmptyResponse, Err: err}
	}
	return &Error{Kind: KindRemote, Err: err}
}

// History returns a copy of the conversation so far.
func (o *Orchestrator) History() []Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.history.Turns()
}

// State reports whether a request is in flight.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Chunks returns the chunk metadata the conversation is grounded on.
func (o *Orchestrator) Chunks() []chunker.Chunk {
	return append([]chunker.Chunk(nil), o.chunks...)
}
