package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"findash/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *model.File) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	return nil
}

// ListByConversationID returns the conversation's files in upload order, content included.
func (r *FileRepository) ListByConversationID(ctx context.Context, conversationID string) ([]model.File, error) {
	var files []model.File
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("id ASC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) CountByConversationID(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.File{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count files failed: %w", err)
	}
	return count, nil
}

// ListMetaByConversationID is ListByConversationID without the content column.
func (r *FileRepository) ListMetaByConversationID(ctx context.Context, conversationID string) ([]model.File, error) {
	var files []model.File
	err := r.db.WithContext(ctx).
		Select("id", "conversation_id", "name", "mime_type", "size", "object_key", "created_at").
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list file metadata failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) GetByIDAndConversationID(ctx context.Context, id uint, conversationID string) (*model.File, error) {
	var file model.File
	if err := r.db.WithContext(ctx).Where("id = ? AND conversation_id = ?", id, conversationID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) DeleteByConversationID(ctx context.Context, conversationID string) error {
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&model.File{}).Error; err != nil {
		return fmt.Errorf("delete files by conversation failed: %w", err)
	}
	return nil
}
