package app

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"findash/internal/model"
	"findash/internal/repository"
)

var ErrConversationNotFound = errors.New("conversation not found")

const (
	maxConversationIDLen = 64
	defaultTitle         = "New Chat"
	titleRunes           = 48
)

// conversationAccess resolves conversation ids for a caller. Conversations owned by a
// user are invisible to everyone else; anonymous ones (UserID 0) are open to anyone
// holding the id.
type conversationAccess struct {
	repo *repository.ConversationRepository
}

func validConversationID(id string) bool {
	if id == "" || len(id) > maxConversationIDLen || !utf8.ValidString(id) {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' {
			return false
		}
	}
	return true
}

func visibleTo(conversation *model.Conversation, userID uint) bool {
	return conversation.UserID == 0 || conversation.UserID == userID
}

func (a conversationAccess) get(ctx context.Context, userID uint, id string) (*model.Conversation, error) {
	id = strings.TrimSpace(id)
	if !validConversationID(id) {
		return nil, ErrInvalidInput
	}
	conversation, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation == nil || !visibleTo(conversation, userID) {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

// getOrCreate returns the conversation with id, creating it when it does not exist.
// An empty id creates a conversation under a fresh UUID.
func (a conversationAccess) getOrCreate(ctx context.Context, userID uint, id, title string) (*model.Conversation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return a.create(ctx, userID, uuid.NewString(), title)
	}
	if !validConversationID(id) {
		return nil, ErrInvalidInput
	}

	conversation, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation != nil {
		if !visibleTo(conversation, userID) {
			return nil, ErrConversationNotFound
		}
		return conversation, nil
	}

	created, err := a.create(ctx, userID, id, title)
	if err == nil {
		return created, nil
	}
	// a concurrent request may have created it first
	conversation, getErr := a.repo.GetByID(ctx, id)
	if getErr != nil || conversation == nil {
		return nil, err
	}
	if !visibleTo(conversation, userID) {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

func (a conversationAccess) create(ctx context.Context, userID uint, id, title string) (*model.Conversation, error) {
	conversation := &model.Conversation{
		ID:     id,
		UserID: userID,
		Title:  titleFrom(title),
	}
	if err := a.repo.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func titleFrom(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return defaultTitle
	}
	runes := []rune(s)
	if len(runes) > titleRunes {
		return string(runes[:titleRunes]) + "..."
	}
	return s
}
