package app

import (
	"context"

	"findash/internal/model"
	"findash/internal/repository"
)

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

// InlineMessageWriter satisfies AsyncMessagePublisher by writing straight to the database.
// It is used when no broker is configured.
type InlineMessageWriter struct {
	repo *repository.MessageRepository
}

func NewInlineMessageWriter(repo *repository.MessageRepository) *InlineMessageWriter {
	return &InlineMessageWriter{repo: repo}
}

func (w *InlineMessageWriter) Publish(ctx context.Context, msg model.Message) error {
	msg.ID = 0
	return w.repo.Create(ctx, &msg)
}
