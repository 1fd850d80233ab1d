package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

const (
	countFilesSQL = `SELECT COUNT(*) FROM conversation_files WHERE conversation_id = ?`
	fileRowsSQL   = `SELECT id, conversation_id, name, content FROM conversation_files WHERE conversation_id = ? ORDER BY id ASC`
)

// FileRow is a conversation_files row read without the ORM model.
type FileRow struct {
	ID             uint
	ConversationID string
	Name           string
	Content        string
}

// DirectFileStore queries conversation_files with plain SQL. It bypasses FileRepository
// and the file index cache, so it sees exactly what is committed in the database.
type DirectFileStore struct {
	db *gorm.DB
}

func NewDirectFileStore(db *gorm.DB) *DirectFileStore {
	return &DirectFileStore{db: db}
}

func (s *DirectFileStore) CountFiles(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Raw(countFilesSQL, conversationID).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("direct count files failed: %w", err)
	}
	return count, nil
}

func (s *DirectFileStore) FileRows(ctx context.Context, conversationID string) ([]FileRow, error) {
	rows, err := s.db.WithContext(ctx).Raw(fileRowsSQL, conversationID).Rows()
	if err != nil {
		return nil, fmt.Errorf("direct query files failed: %w", err)
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		var row FileRow
		if err := rows.Scan(&row.ID, &row.ConversationID, &row.Name, &row.Content); err != nil {
			return nil, fmt.Errorf("direct scan file row failed: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("direct iterate file rows failed: %w", err)
	}
	return out, nil
}
