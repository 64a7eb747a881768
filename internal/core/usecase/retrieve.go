package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/askidc/corpus-assistant/internal/core/domain"
	"github.com/askidc/corpus-assistant/internal/core/ports"
)

// RetrieveConfig carries the query-time tuning knobs.
type RetrieveConfig struct {
	SemanticWeight   float64
	LexicalWeight    float64
	TopKCandidates   int
	HybridCandidates int
	TokenBudget      int
	MaxTurns         int
	ContactEmail     string
}

func (c *RetrieveConfig) normalize() {
	if c.TopKCandidates <= 0 {
		c.TopKCandidates = 5
	}
	if c.HybridCandidates <= 0 {
		c.HybridCandidates = 30
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = 4000
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = 20
	}
	if c.SemanticWeight == 0 && c.LexicalWeight == 0 {
		c.SemanticWeight, c.LexicalWeight = 0.7, 0.3
	}
}

// RetrieveUseCase runs the query-time pipeline: embed the query, pull
// a candidate pool from the index, fuse semantic and lexical scores,
// and assemble the context block under the rune budget. Chat layers
// the answer generator and conversation state on top.
type RetrieveUseCase struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	sessions  ports.SessionStore
	generator ports.AnswerGenerator
	cfg       RetrieveConfig
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	sessions ports.SessionStore,
	generator ports.AnswerGenerator,
	cfg RetrieveConfig,
) *RetrieveUseCase {
	cfg.normalize()
	return &RetrieveUseCase{
		embedder:  embedder,
		index:     index,
		sessions:  sessions,
		generator: generator,
		cfg:       cfg,
	}
}

// Retrieve is deterministic for a fixed corpus generation and query:
// identical inputs produce identical context and citations.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query, sessionID string, k int) (*domain.RetrievedContext, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("empty query"))
	}
	if k <= 0 {
		k = uc.cfg.TopKCandidates
	}

	history := uc.sessions.Recent(sessionID, uc.cfg.MaxTurns)

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	pool, err := uc.index.Search(queryVector, uc.cfg.HybridCandidates)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	ranked := rankCandidates(query, pool, uc.cfg.SemanticWeight, uc.cfg.LexicalWeight, k)
	contextBlock, citations := assembleContext(ranked, uc.cfg.TokenBudget)

	return &domain.RetrievedContext{
		Context:    contextBlock,
		Citations:  citations,
		TurnsUsed:  len(history),
		Candidates: ranked,
	}, nil
}

// Chat wraps Retrieve with the answer generator and session history.
// Common service queries are answered directly without retrieval, and
// any pipeline or generation failure degrades to the apology response
// instead of surfacing an error to the end user.
func (uc *RetrieveUseCase) Chat(ctx context.Context, query, sessionID string, k int) (*domain.ChatResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("empty query"))
	}

	if canned := uc.cannedResponse(query); canned != "" {
		uc.record(sessionID, query, canned)
		return &domain.ChatResult{
			SessionID: sessionID,
			Answer:    canned,
		}, nil
	}

	history := uc.sessions.Recent(sessionID, uc.cfg.MaxTurns)

	retrieved, err := uc.Retrieve(ctx, query, sessionID, k)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return nil, err
		}
		answer := uc.apology()
		uc.record(sessionID, query, answer)
		return &domain.ChatResult{
			SessionID: sessionID,
			Answer:    answer,
			TurnsUsed: len(history),
			NoContext: true,
		}, nil
	}

	if retrieved.Context == "" {
		answer := uc.noContextResponse()
		uc.record(sessionID, query, answer)
		return &domain.ChatResult{
			SessionID: sessionID,
			Answer:    answer,
			TurnsUsed: retrieved.TurnsUsed,
			NoContext: true,
		}, nil
	}

	answer, err := uc.generator.GenerateAnswer(ctx, query, retrieved.Context, history)
	if err != nil || strings.TrimSpace(answer) == "" {
		answer = uc.apology()
		uc.record(sessionID, query, answer)
		return &domain.ChatResult{
			SessionID: sessionID,
			Answer:    answer,
			Citations: retrieved.Citations,
			TurnsUsed: retrieved.TurnsUsed,
			NoContext: true,
		}, nil
	}

	uc.record(sessionID, query, answer)
	return &domain.ChatResult{
		SessionID: sessionID,
		Answer:    answer,
		Citations: retrieved.Citations,
		TurnsUsed: retrieved.TurnsUsed,
	}, nil
}

func (uc *RetrieveUseCase) record(sessionID, query, answer string) {
	if sessionID == "" {
		return
	}
	now := time.Now().UTC()
	uc.sessions.Append(sessionID, domain.Turn{Role: domain.RoleUser, Text: query, CreatedAt: now})
	uc.sessions.Append(sessionID, domain.Turn{Role: domain.RoleAssistant, Text: answer, CreatedAt: now})
}

// cannedResponse short-circuits contact and company questions that
// need no retrieval. Matching is deliberately coarse.
func (uc *RetrieveUseCase) cannedResponse(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "contact") || strings.Contains(q, "email") || strings.Contains(q, "phone"):
		return fmt.Sprintf("You can reach us at %s and we will get back to you as soon as possible.", uc.cfg.ContactEmail)
	case strings.Contains(q, "who are you") || strings.Contains(q, "what are you"):
		return "I am an assistant that answers questions about our services and documentation. Ask me anything covered by our knowledge base."
	default:
		return ""
	}
}

func (uc *RetrieveUseCase) apology() string {
	return fmt.Sprintf("I apologize, but I'm having trouble answering that right now. Please try again in a moment or contact us at %s.", uc.cfg.ContactEmail)
}

func (uc *RetrieveUseCase) noContextResponse() string {
	return fmt.Sprintf("I couldn't find anything in our knowledge base about that. Please rephrase your question or contact us at %s.", uc.cfg.ContactEmail)
}
