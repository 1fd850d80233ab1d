package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"findash/internal/model"
)

// FileIndexCache keeps the file list of a conversation, extracted text included,
// so repeated chat turns do not reload large documents from the database.
type FileIndexCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

// cachedFile mirrors model.File but keeps Content, which model.File hides from JSON.
type cachedFile struct {
	ID             uint      `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Name           string    `json:"name"`
	MimeType       string    `json:"mime_type"`
	Size           int64     `json:"size"`
	Content        string    `json:"content"`
	ObjectKey      string    `json:"object_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewFileIndexCache(client *redisv9.Client, ttl time.Duration) *FileIndexCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &FileIndexCache{client: client, ttl: ttl}
}

func (c *FileIndexCache) GetFiles(ctx context.Context, conversationID string) ([]model.File, bool, error) {
	raw, err := c.client.Get(ctx, filesKey(conversationID)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get file index failed: %w", err)
	}

	var cached []cachedFile
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, fmt.Errorf("unmarshal file index failed: %w", err)
	}
	files := make([]model.File, 0, len(cached))
	for _, f := range cached {
		files = append(files, model.File{
			ID:             f.ID,
			ConversationID: f.ConversationID,
			Name:           f.Name,
			MimeType:       f.MimeType,
			Size:           f.Size,
			Content:        f.Content,
			ObjectKey:      f.ObjectKey,
			CreatedAt:      f.CreatedAt,
		})
	}
	return files, true, nil
}

func (c *FileIndexCache) SetFiles(ctx context.Context, conversationID string, files []model.File) error {
	cached := make([]cachedFile, 0, len(files))
	for _, f := range files {
		cached = append(cached, cachedFile{
			ID:             f.ID,
			ConversationID: f.ConversationID,
			Name:           f.Name,
			MimeType:       f.MimeType,
			Size:           f.Size,
			Content:        f.Content,
			ObjectKey:      f.ObjectKey,
			CreatedAt:      f.CreatedAt,
		})
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal file index failed: %w", err)
	}
	if err := c.client.Set(ctx, filesKey(conversationID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set file index failed: %w", err)
	}
	return nil
}

func (c *FileIndexCache) InvalidateFiles(ctx context.Context, conversationID string) error {
	if err := c.client.Del(ctx, filesKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete file index failed: %w", err)
	}
	return nil
}

func filesKey(conversationID string) string {
	return "chat:files:" + conversationID
}
