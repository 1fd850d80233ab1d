package app

import (
	"context"

	"go.uber.org/zap"

	"findash/internal/logging"
	"findash/internal/model"
	"findash/internal/repository"
)

type FileIndexCache interface {
	GetFiles(ctx context.Context, conversationID string) ([]model.File, bool, error)
	SetFiles(ctx context.Context, conversationID string, files []model.File) error
	InvalidateFiles(ctx context.Context, conversationID string) error
}

// FileLookup is the regular read path for a conversation's files: the Redis file index
// first, then the repository, refilling the index on a miss. A non-empty index is only
// trusted while its length matches the file count in the database, so a refill that
// raced an upload cannot hide the new file.
type FileLookup struct {
	repo   *repository.FileRepository
	cache  FileIndexCache
	logger *zap.Logger
}

func NewFileLookup(repo *repository.FileRepository, cache FileIndexCache, logger *zap.Logger) *FileLookup {
	return &FileLookup{repo: repo, cache: cache, logger: logging.OrNop(logger)}
}

func (l *FileLookup) ListConversationFiles(ctx context.Context, conversationID string) ([]model.File, error) {
	if l.cache != nil {
		files, hit, err := l.cache.GetFiles(ctx, conversationID)
		if err != nil {
			l.logger.Warn("file index read failed", zap.String("conversation_id", conversationID), zap.Error(err))
		} else if hit && l.fresh(ctx, conversationID, files) {
			return files, nil
		}
	}

	files, err := l.repo.ListByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		if err := l.cache.SetFiles(ctx, conversationID, files); err != nil {
			l.logger.Warn("file index write failed", zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}
	return files, nil
}

// fresh reports whether a cached list still covers every stored file. An empty list is
// taken as is; the direct strategy counts rows on its own when the index comes back empty.
func (l *FileLookup) fresh(ctx context.Context, conversationID string, files []model.File) bool {
	if len(files) == 0 {
		return true
	}
	count, err := l.repo.CountByConversationID(ctx, conversationID)
	if err != nil {
		l.logger.Warn("file count failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return false
	}
	if count != int64(len(files)) {
		l.logger.Warn("file index stale",
			zap.String("conversation_id", conversationID),
			zap.Int("cached", len(files)),
			zap.Int64("stored", count))
		return false
	}
	return true
}

func (l *FileLookup) Invalidate(ctx context.Context, conversationID string) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.InvalidateFiles(ctx, conversationID)
}
