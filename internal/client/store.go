package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/chat-ai/internal/markup"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	NewChatTitle = "New Chat"

	chatErrorText      = "Sorry, I encountered an error while processing your message. Please try again later."
	timeTrackErrorText = "Sorry, I encountered an error while fetching that information. Please try again later."
)

var ErrNotLoggedIn = errors.New("not logged in")

// Session is the identity of the logged-in user.
type Session struct {
	Token    string
	UserID   string
	Username string
}

// Entry is one message bubble in the active conversation.
type Entry struct {
	Role      string
	Content   string
	Formatted string
	Timestamp time.Time
	Display   string
	Error     bool
}

// Store holds the conversation list and the messages of the active conversation.
// The mutex is never held across a backend call.
type Store struct {
	backend Backend
	now     func() time.Time

	mu            sync.Mutex
	session       *Session
	conversations []Conversation
	activeID      uint64
	activeTitle   string
	messages      []Entry
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend, now: time.Now, activeTitle: NewChatTitle}
}

func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	res, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	sess := &Session{Token: res.Token, UserID: res.UserID, Username: res.Username}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
	s.resetLocked()
	return *sess, nil
}

// Resume installs a session obtained earlier, e.g. from a saved token.
func (s *Store) Resume(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &sess
	s.resetLocked()
}

// Logout drops the session and all conversation state.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.conversations = nil
	s.activeID = 0
	s.activeTitle = NewChatTitle
	s.messages = nil
}

func (s *Store) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Conversation(nil), s.conversations...)
}

func (s *Store) Messages() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.messages...)
}

// Active returns the active conversation; ok is false for an unsaved new chat.
func (s *Store) Active() (id uint64, title string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID, s.activeTitle, s.activeID != 0
}

func (s *Store) token() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNotLoggedIn
	}
	return s.session, nil
}

// check tears the session down when the backend reports it unauthorised.
func (s *Store) check(sess *Session, err error) error {
	if err != nil && errors.Is(err, ErrUnauthorized) {
		s.mu.Lock()
		if s.session == sess {
			s.session = nil
			s.resetLocked()
		}
		s.mu.Unlock()
	}
	return err
}

// Load fetches the conversation list. With conversations and nothing active the
// most recent one is activated; with none the active state is cleared.
func (s *Store) Load(ctx context.Context) error {
	sess, err := s.token()
	if err != nil {
		return err
	}
	convs, err := s.backend.ListConversations(ctx, sess.Token)
	if err := s.check(sess, err); err != nil {
		s.mu.Lock()
		s.conversations = nil
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		return ErrNotLoggedIn
	}
	s.conversations = append([]Conversation(nil), convs...)
	s.sortLocked()
	var first uint64
	switch {
	case len(s.conversations) == 0:
		s.activeID = 0
		s.activeTitle = ""
		s.messages = nil
	case s.activeID == 0:
		first = s.conversations[0].ID
	}
	s.mu.Unlock()

	if first != 0 {
		return s.Activate(ctx, first)
	}
	return nil
}

// Activate makes id the active conversation and loads its history.
func (s *Store) Activate(ctx context.Context, id uint64) error {
	sess, err := s.token()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.activeID = id
	s.activeTitle = ""
	for _, c := range s.conversations {
		if c.ID == id {
			s.activeTitle = c.Title
			break
		}
	}
	s.mu.Unlock()

	turns, err := s.backend.History(ctx, sess.Token, id)
	if err := s.check(sess, err); err != nil {
		s.mu.Lock()
		if s.activeID == id {
			s.messages = nil
		}
		s.mu.Unlock()
		return err
	}

	entries := make([]Entry, 0, 2*len(turns))
	for _, t := range turns {
		entries = append(entries,
			newEntry(RoleUser, t.Message, t.CreatedAt),
			newEntry(RoleAssistant, t.Reply, t.CreatedAt),
		)
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Content != "" {
			kept = append(kept, e)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == id {
		s.messages = kept
	}
	return nil
}

// StartNew switches to an unsaved conversation; the first send creates it.
func (s *Store) StartNew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = 0
	s.activeTitle = NewChatTitle
	s.messages = nil
}

// Send posts message to the active conversation. Blank messages are ignored. A
// failed send leaves a visible error entry and returns the error.
func (s *Store) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return s.send(ctx, message, chatErrorText, func(token string, convID *uint64) (*Reply, error) {
		return s.backend.Chat(ctx, token, convID, message)
	})
}

// SendTimeTrack runs a TimeTrack query in the active conversation.
func (s *Store) SendTimeTrack(ctx context.Context, queryType, projectName string) error {
	return s.send(ctx, TimeTrackMessage(queryType, projectName), timeTrackErrorText, func(token string, convID *uint64) (*Reply, error) {
		return s.backend.TimeTrack(ctx, token, convID, queryType, projectName)
	})
}

// TimeTrackMessage is the user-side text shown for a TimeTrack query.
func TimeTrackMessage(queryType, projectName string) string {
	if queryType == "absences" {
		return "I asked about workers absent/on leave."
	}
	if projectName = strings.TrimSpace(projectName); projectName != "" {
		return fmt.Sprintf("I asked about project: %s.", projectName)
	}
	return "I asked about worker projects."
}

func (s *Store) send(ctx context.Context, userText, errorText string, call func(token string, convID *uint64) (*Reply, error)) error {
	sess, err := s.token()
	if err != nil {
		return err
	}

	s.mu.Lock()
	sentFrom := s.activeID
	var convID *uint64
	if sentFrom != 0 {
		convID = &sentFrom
	}
	s.messages = append(s.messages, newEntry(RoleUser, userText, s.now()))
	s.mu.Unlock()

	reply, err := call(sess.Token, convID)
	if err := s.check(sess, err); err != nil {
		s.mu.Lock()
		if s.session == sess && s.activeID == sentFrom {
			e := newEntry(RoleAssistant, errorText, s.now())
			e.Error = true
			s.messages = append(s.messages, e)
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != sess {
		return ErrNotLoggedIn
	}
	// the user may have switched conversations while the call was in flight
	stillActive := s.activeID == sentFrom
	now := s.now()
	switch {
	case convID == nil && reply.ConversationID != 0:
		if stillActive {
			s.activeID = reply.ConversationID
			s.activeTitle = reply.ConversationTitle
		}
		s.conversations = append([]Conversation{{
			ID:        reply.ConversationID,
			Title:     reply.ConversationTitle,
			CreatedAt: now,
			UpdatedAt: now,
		}}, s.conversations...)
	case convID != nil && *convID == reply.ConversationID:
		for i := range s.conversations {
			if s.conversations[i].ID == reply.ConversationID {
				s.conversations[i].UpdatedAt = now
				break
			}
		}
	}
	s.sortLocked()
	if stillActive {
		s.messages = append(s.messages, newEntry(RoleAssistant, reply.Response, now))
	}
	return nil
}

// Delete removes a conversation. Deleting the active one switches to the most
// recent remaining conversation, or to a new chat when none is left.
func (s *Store) Delete(ctx context.Context, id uint64) error {
	sess, err := s.token()
	if err != nil {
		return err
	}
	if err := s.check(sess, s.backend.DeleteConversation(ctx, sess.Token, id)); err != nil {
		return err
	}

	s.mu.Lock()
	kept := s.conversations[:0]
	for _, c := range s.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.conversations = kept
	wasActive := s.activeID == id
	var next uint64
	if wasActive {
		s.activeID = 0
		s.activeTitle = NewChatTitle
		s.messages = nil
		if len(s.conversations) > 0 {
			next = s.conversations[0].ID
		}
	}
	s.mu.Unlock()

	if next != 0 {
		return s.Activate(ctx, next)
	}
	return nil
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].UpdatedAt.After(s.conversations[j].UpdatedAt)
	})
}

func newEntry(role, content string, ts time.Time) Entry {
	return Entry{
		Role:      role,
		Content:   content,
		Formatted: markup.Format(content),
		Timestamp: ts,
		Display:   ts.Local().Format("15:04:05"),
	}
}
