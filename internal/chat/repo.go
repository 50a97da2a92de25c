package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Transaction runs fn with a Repo bound to a single database transaction.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

func (r *Repo) CreateConversation(ctx context.Context, c *Conversation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

// GetConversationForUser hides conversations owned by someone else behind ErrConversationNotFound.
func (r *Repo) GetConversationForUser(ctx context.Context, id uint64, userID string) (*Conversation, error) {
	var c Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) TouchConversation(ctx context.Context, id uint64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
}

// ListConversations returns the user's conversations, most recently updated first.
func (r *Repo) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	var convs []Conversation
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

// DeleteConversation removes the conversation and its turns. A conversation that is
// missing or owned by another user yields ErrConversationNotFound.
func (r *Repo) DeleteConversation(ctx context.Context, id uint64, userID string) error {
	return r.Transaction(ctx, func(tx *Repo) error {
		res := tx.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", id, userID).
			Delete(&Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConversationNotFound
		}
		return tx.db.WithContext(ctx).
			Where("conversation_id = ?", id).
			Delete(&Turn{}).Error
	})
}

func (r *Repo) InsertTurn(ctx context.Context, t *Turn) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error
}

// ListTurns returns turns in creation order (oldest -> newest).
func (r *Repo) ListTurns(ctx context.Context, conversationID uint64) ([]Turn, error) {
	var turns []Turn
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}

// ListRecentTurnsDesc returns the most recent turns in DESC order (newest -> oldest).
func (r *Repo) ListRecentTurnsDesc(ctx context.Context, conversationID uint64, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	var turns []Turn
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}
