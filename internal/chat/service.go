package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/chat-ai/internal/ai"
	"github.com/suPer8Hu/chat-ai/internal/search"
	"go.uber.org/zap"
)

const (
	QueryAbsences = "absences"
	QueryProjects = "projects"

	assistantPrompt = "You are a helpful AI assistant."
	groundedPrompt  = `You are a helpful AI assistant that answers questions based ONLY on the provided context.
If the answer cannot be found in the context, politely say that you don't have that information in your knowledge base.

Context:
%s`
	noContextPrompt = `You are a helpful AI assistant that answers questions based ONLY on your knowledge base.
Since no relevant information was found in the knowledge base for this query, please respond that you cannot answer based on the available information.`
)

// Searcher supplies knowledge-base passages for a user message.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Document, error)
}

// TimeTrack answers the specialised TimeTrack queries.
type TimeTrack interface {
	CurrentAbsences(ctx context.Context) (string, error)
	ProjectInfo(ctx context.Context, projectName string) (string, error)
}

type Service struct {
	repo              *Repo
	provider          ai.Provider
	searcher          Searcher
	timetrack         TimeTrack
	contextWindowSize int
	now               func() time.Time
	log               *zap.Logger
}

type Option func(*Service)

// WithSearcher grounds replies in knowledge-base search results.
func WithSearcher(s Searcher) Option { return func(svc *Service) { svc.searcher = s } }

func WithTimeTrack(t TimeTrack) Option { return func(svc *Service) { svc.timetrack = t } }

// WithContextWindow sets how many previous messages (user and assistant) are sent to the model.
func WithContextWindow(n int) Option {
	return func(svc *Service) {
		if n >= 0 && n <= 100 {
			svc.contextWindowSize = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(svc *Service) { svc.now = now } }

func WithLogger(l *zap.Logger) Option { return func(svc *Service) { svc.log = l } }

func NewService(repo *Repo, provider ai.Provider, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		provider:          provider,
		contextWindowSize: 20,
		now:               time.Now,
		log:               zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply is the outcome of one send: the assistant text and the conversation it was
// recorded in.
type Reply struct {
	Response          string
	ConversationID    uint64
	ConversationTitle string
	Created           bool
}

// ResolveConversation creates a conversation owned by userID when conversationID is
// nil, otherwise checks ownership and advances its updated-at timestamp. The
// returned bool reports whether a conversation was created.
func (s *Service) ResolveConversation(ctx context.Context, userID string, conversationID *uint64, title string) (*Conversation, bool, error) {
	now := s.now()

	if conversationID == nil {
		conv := &Conversation{
			UserID:    userID,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateConversation(ctx, conv); err != nil {
			return nil, false, fmt.Errorf("create conversation: %w", err)
		}
		return conv, true, nil
	}

	conv, err := s.repo.GetConversationForUser(ctx, *conversationID, userID)
	if err != nil {
		return nil, false, err
	}
	if err := s.repo.TouchConversation(ctx, conv.ID, now); err != nil {
		return nil, false, fmt.Errorf("touch conversation %d: %w", conv.ID, err)
	}
	conv.UpdatedAt = now
	return conv, false, nil
}

// RecordTurn appends an immutable turn. Callers must have resolved the
// conversation first.
func (s *Service) RecordTurn(ctx context.Context, conversationID uint64, message, reply string) (*Turn, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	turn := &Turn{
		ConversationID: conversationID,
		Message:        message,
		Reply:          reply,
		CreatedAt:      s.now(),
	}
	if err := s.repo.InsertTurn(ctx, turn); err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}
	return turn, nil
}

// SendMessage asks the model for a reply to message and records the turn. Nothing
// is written when the model call fails.
func (s *Service) SendMessage(ctx context.Context, userID string, conversationID *uint64, message string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	// 1) ownership check and history before spending a model call
	var history []Turn
	if conversationID != nil {
		if _, err := s.repo.GetConversationForUser(ctx, *conversationID, userID); err != nil {
			return nil, err
		}
		var err error
		history, err = s.recentHistory(ctx, *conversationID)
		if err != nil {
			return nil, err
		}
	}

	// 2) call provider
	prompt := s.buildPrompt(ctx, history, message)
	reply, err := s.provider.Chat(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// 3) conversation + turn, atomically
	return s.commit(ctx, userID, conversationID, TitleFromMessage(message), message, reply)
}

// TimeTrackQuery is a specialised query answered from TimeTrack instead of the model.
type TimeTrackQuery struct {
	Type        string
	ProjectName string
}

func (q TimeTrackQuery) Validate() error {
	switch q.Type {
	case QueryAbsences, QueryProjects:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidQueryType, q.Type)
	}
}

// UserMessage is the text recorded as the user side of the turn.
func (q TimeTrackQuery) UserMessage() string {
	if q.Type == QueryAbsences {
		return "I asked about workers absent/on leave."
	}
	if name := strings.TrimSpace(q.ProjectName); name != "" {
		return fmt.Sprintf("I asked about project: %s.", name)
	}
	return "I asked about worker projects."
}

// Title is the fixed label for conversations started by this query.
func (q TimeTrackQuery) Title() string {
	if q.Type == QueryAbsences {
		return "TimeTrack: Absences"
	}
	return "TimeTrack: Projects"
}

// SendTimeTrackQuery answers q and records it like any other turn.
func (s *Service) SendTimeTrackQuery(ctx context.Context, userID string, conversationID *uint64, q TimeTrackQuery) (*Reply, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.timetrack == nil {
		return nil, fmt.Errorf("%w: timetrack is not configured", ErrUpstream)
	}
	if conversationID != nil {
		if _, err := s.repo.GetConversationForUser(ctx, *conversationID, userID); err != nil {
			return nil, err
		}
	}

	var (
		reply string
		err   error
	)
	if q.Type == QueryAbsences {
		reply, err = s.timetrack.CurrentAbsences(ctx)
	} else {
		reply, err = s.timetrack.ProjectInfo(ctx, q.ProjectName)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return s.commit(ctx, userID, conversationID, q.Title(), q.UserMessage(), reply)
}

func (s *Service) commit(ctx context.Context, userID string, conversationID *uint64, title, message, reply string) (*Reply, error) {
	var out *Reply
	err := s.repo.Transaction(ctx, func(tx *Repo) error {
		txSvc := *s
		txSvc.repo = tx

		conv, created, err := txSvc.ResolveConversation(ctx, userID, conversationID, title)
		if err != nil {
			return err
		}
		if _, err := txSvc.RecordTurn(ctx, conv.ID, message, reply); err != nil {
			return err
		}
		out = &Reply{
			Response:          reply,
			ConversationID:    conv.ID,
			ConversationTitle: conv.Title,
			Created:           created,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) recentHistory(ctx context.Context, conversationID uint64) ([]Turn, error) {
	turns := s.contextWindowSize / 2
	if turns == 0 {
		return nil, nil
	}
	recentDesc, err := s.repo.ListRecentTurnsDesc(ctx, conversationID, turns)
	if err != nil {
		return nil, err
	}
	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(recentDesc)-1; i < j; i, j = i+1, j-1 {
		recentDesc[i], recentDesc[j] = recentDesc[j], recentDesc[i]
	}
	return recentDesc, nil
}

func (s *Service) buildPrompt(ctx context.Context, history []Turn, message string) []ai.Message {
	msgs := make([]ai.Message, 0, 2+2*len(history))
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: s.systemPrompt(ctx, message)})
	for _, t := range history {
		msgs = append(msgs,
			ai.Message{Role: ai.RoleUser, Content: t.Message},
			ai.Message{Role: ai.RoleAssistant, Content: t.Reply},
		)
	}
	return append(msgs, ai.Message{Role: ai.RoleUser, Content: message})
}

func (s *Service) systemPrompt(ctx context.Context, message string) string {
	if s.searcher == nil {
		return assistantPrompt
	}
	docs, err := s.searcher.Search(ctx, message)
	if err != nil {
		// a failed search is answered like an empty one
		s.log.Warn("knowledge search failed", zap.Error(err))
		docs = nil
	}
	if len(docs) == 0 {
		return noContextPrompt
	}
	return fmt.Sprintf(groundedPrompt, search.BuildContext(docs))
}

func (s *Service) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	return s.repo.ListConversations(ctx, userID)
}

func (s *Service) DeleteConversation(ctx context.Context, userID string, conversationID uint64) error {
	return s.repo.DeleteConversation(ctx, conversationID, userID)
}

// History returns the turns of an owned conversation, oldest first.
func (s *Service) History(ctx context.Context, userID string, conversationID uint64) ([]Turn, error) {
	if _, err := s.repo.GetConversationForUser(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListTurns(ctx, conversationID)
}
