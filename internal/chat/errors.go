package chat

import "errors"

var (
	// ErrConversationNotFound covers both a missing conversation and one owned by
	// another user, so callers cannot probe for ids.
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message is required")
	ErrInvalidQueryType     = errors.New("invalid query type")
	// ErrUpstream wraps failures of the LLM and TimeTrack collaborators.
	ErrUpstream = errors.New("upstream failure")
)
