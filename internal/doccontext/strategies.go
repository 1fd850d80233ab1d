package doccontext

import (
	"context"

	"go.uber.org/zap"

	"findash/internal/logging"
	"findash/internal/model"
	"findash/internal/repository"
)

const (
	StageStandard = "standard"
	StageDirect   = "direct"
)

// FileLister is the regular data-access path for a conversation's files.
type FileLister interface {
	ListConversationFiles(ctx context.Context, conversationID string) ([]model.File, error)
}

// RawFileStore reads files straight from the database.
type RawFileStore interface {
	CountFiles(ctx context.Context, conversationID string) (int64, error)
	FileRows(ctx context.Context, conversationID string) ([]repository.FileRow, error)
}

type StandardStrategy struct {
	files FileLister
}

func NewStandardStrategy(files FileLister) *StandardStrategy {
	return &StandardStrategy{files: files}
}

func (s *StandardStrategy) Name() string { return StageStandard }

func (s *StandardStrategy) Documents(ctx context.Context, conversationID string) ([]Document, error) {
	files, err := s.files.ListConversationFiles(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(files))
	for _, f := range files {
		if f.ConversationID != conversationID {
			continue
		}
		docs = append(docs, Document{FileID: f.ID, Name: f.Name, Content: f.Content})
	}
	return docs, nil
}

// DirectStrategy confirms with a COUNT that the conversation really has files and, if so,
// rebuilds the documents from raw rows.
type DirectStrategy struct {
	store  RawFileStore
	logger *zap.Logger
}

func NewDirectStrategy(store RawFileStore, logger *zap.Logger) *DirectStrategy {
	return &DirectStrategy{store: store, logger: logging.OrNop(logger)}
}

func (s *DirectStrategy) Name() string { return StageDirect }

func (s *DirectStrategy) Documents(ctx context.Context, conversationID string) ([]Document, error) {
	count, err := s.store.CountFiles(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	rows, err := s.store.FileRows(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		if row.ConversationID != conversationID {
			s.logger.Error("doccontext.direct.conversation_mismatch",
				zap.String("conversation_id", conversationID),
				zap.String("row_conversation_id", row.ConversationID),
				zap.Uint("file_id", row.ID))
			continue
		}
		docs = append(docs, Document{FileID: row.ID, Name: row.Name, Content: row.Content})
	}
	return docs, nil
}
