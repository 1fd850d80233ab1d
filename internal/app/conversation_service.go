package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"findash/internal/dashboard"
	"findash/internal/logging"
	"findash/internal/model"
	"findash/internal/pkg/pdfextract"
	"findash/internal/repository"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoDashboard     = errors.New("conversation has no assistant reply yet")
)

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, conversationID string, messages []model.Message) error
	DeleteHistory(ctx context.Context, conversationID string) error
	MarkDirty(ctx context.Context, conversationID string) error
	IsDirty(ctx context.Context, conversationID string) (bool, error)
}

// BlobStore keeps the raw bytes of uploads. Optional.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
}

type ConversationService struct {
	access       conversationAccess
	conversation *repository.ConversationRepository
	files        *repository.FileRepository
	messages     *repository.MessageRepository
	fileLookup   *FileLookup
	historyCache HistoryCache
	blobs        BlobStore
	maxUpload    int64
	logger       *zap.Logger
}

type ConversationDeps struct {
	Conversations *repository.ConversationRepository
	Files         *repository.FileRepository
	Messages      *repository.MessageRepository
	FileLookup    *FileLookup
	HistoryCache  HistoryCache
	Blobs         BlobStore
	MaxUploadSize int64
	Logger        *zap.Logger
}

type CreateConversationInput struct {
	UserID uint
	ID     string
	Title  string
}

type UploadFileInput struct {
	UserID         uint
	ConversationID string
	Name           string
	Reader         io.Reader
}

// DashboardView is the latest assistant reply of a conversation split into prose and dashboard.
type DashboardView struct {
	ConversationID string
	Reply          string
	Dashboard      *dashboard.Dashboard
}

func NewConversationService(deps ConversationDeps) *ConversationService {
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = 10 << 20
	}
	return &ConversationService{
		access:       conversationAccess{repo: deps.Conversations},
		conversation: deps.Conversations,
		files:        deps.Files,
		messages:     deps.Messages,
		fileLookup:   deps.FileLookup,
		historyCache: deps.HistoryCache,
		blobs:        deps.Blobs,
		maxUpload:    deps.MaxUploadSize,
		logger:       logging.OrNop(deps.Logger),
	}
}

func (s *ConversationService) Create(ctx context.Context, input CreateConversationInput) (*model.Conversation, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if !validConversationID(id) {
		return nil, ErrInvalidInput
	}
	return s.access.create(ctx, input.UserID, id, input.Title)
}

func (s *ConversationService) List(ctx context.Context, userID uint) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.conversation.ListByUserID(ctx, userID)
}

func (s *ConversationService) Get(ctx context.Context, userID uint, id string) (*model.Conversation, error) {
	return s.access.get(ctx, userID, id)
}

func (s *ConversationService) Delete(ctx context.Context, userID uint, id string) error {
	conversation, err := s.access.get(ctx, userID, id)
	if err != nil {
		return err
	}

	files, err := s.files.ListMetaByConversationID(ctx, conversation.ID)
	if err != nil {
		return err
	}
	if err := s.conversation.DeleteWithContents(ctx, conversation.ID); err != nil {
		return err
	}

	if s.fileLookup != nil {
		if err := s.fileLookup.Invalidate(ctx, conversation.ID); err != nil {
			s.logger.Warn("invalidate file index failed", zap.String("conversation_id", conversation.ID), zap.Error(err))
		}
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, conversation.ID)
	}
	if s.blobs != nil {
		for _, f := range files {
			if f.ObjectKey == "" {
				continue
			}
			if err := s.blobs.Remove(ctx, f.ObjectKey); err != nil {
				s.logger.Warn("remove upload object failed", zap.String("object_key", f.ObjectKey), zap.Error(err))
			}
		}
	}
	return nil
}

// UploadFile stores a document and its extracted text under the conversation, creating
// the conversation if it does not exist yet.
func (s *ConversationService) UploadFile(ctx context.Context, input UploadFileInput) (*model.File, error) {
	name := filepath.Base(strings.TrimSpace(input.Name))
	if name == "" || name == "." || name == string(filepath.Separator) || input.Reader == nil {
		return nil, ErrInvalidInput
	}

	data, err := io.ReadAll(io.LimitReader(input.Reader, s.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("read upload failed: %w", err)
	}
	if int64(len(data)) > s.maxUpload {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, ErrInvalidInput
	}

	mimeType, content, err := extractText(name, data)
	if err != nil {
		return nil, err
	}

	conversation, err := s.access.getOrCreate(ctx, input.UserID, input.ConversationID, name)
	if err != nil {
		return nil, err
	}

	file := &model.File{
		ConversationID: conversation.ID,
		Name:           name,
		MimeType:       mimeType,
		Size:           int64(len(data)),
		Content:        content,
	}
	if s.blobs != nil {
		key := fmt.Sprintf("conversations/%s/%s%s", conversation.ID, uuid.NewString(), strings.ToLower(filepath.Ext(name)))
		if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
			s.logger.Warn("store upload object failed", zap.String("conversation_id", conversation.ID), zap.Error(err))
		} else {
			file.ObjectKey = key
		}
	}

	if err := s.files.Create(ctx, file); err != nil {
		return nil, err
	}
	if s.fileLookup != nil {
		if err := s.fileLookup.Invalidate(ctx, conversation.ID); err != nil {
			s.logger.Warn("invalidate file index failed", zap.String("conversation_id", conversation.ID), zap.Error(err))
		}
	}
	if err := s.conversation.Touch(ctx, conversation.ID); err != nil {
		s.logger.Warn("touch conversation failed", zap.String("conversation_id", conversation.ID), zap.Error(err))
	}

	s.logger.Info("file uploaded",
		zap.String("conversation_id", conversation.ID),
		zap.Uint("file_id", file.ID),
		zap.String("mime_type", mimeType),
		zap.Int("chars", utf8.RuneCountInString(content)))
	return file, nil
}

func (s *ConversationService) ListFiles(ctx context.Context, userID uint, conversationID string) ([]model.File, error) {
	conversation, err := s.access.get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	return s.files.ListMetaByConversationID(ctx, conversation.ID)
}

// History serves the message log, from Redis unless a write is still in flight.
func (s *ConversationService) History(ctx context.Context, userID uint, conversationID string, limit int) ([]model.Message, error) {
	conversation, err := s.access.get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	id := conversation.ID

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, id)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, id); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messages.ListByConversationID(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, id); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, id, messages)
		}
	}
	return trimMessages(messages, limit), nil
}

// LatestDashboard re-reads the newest assistant reply and extracts its dashboard.
func (s *ConversationService) LatestDashboard(ctx context.Context, userID uint, conversationID string) (*DashboardView, error) {
	conversation, err := s.access.get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	msg, err := s.messages.LatestByRole(ctx, conversation.ID, model.RoleAssistant)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrNoDashboard
	}

	reply, d, err := dashboard.Extract(msg.Content)
	if err != nil {
		s.logger.Warn("stored reply has a malformed dashboard", zap.String("conversation_id", conversation.ID), zap.Error(err))
	}
	return &DashboardView{ConversationID: conversation.ID, Reply: reply, Dashboard: d}, nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

var textExtensions = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".json": "application/json",
}

// extractText sniffs the upload and returns its mime type and plain text.
func extractText(name string, data []byte) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	sniffed := http.DetectContentType(data)

	if ext == ".pdf" || strings.HasPrefix(sniffed, "application/pdf") {
		text, err := pdfextract.ExtractText(data)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
		}
		return "application/pdf", text, nil
	}

	mimeType, known := textExtensions[ext]
	if !known {
		if !strings.HasPrefix(sniffed, "text/") {
			return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFile, sniffed)
		}
		mimeType = sniffed
	}
	if !utf8.Valid(data) {
		return "", "", fmt.Errorf("%w: text is not valid utf-8", ErrUnsupportedFile)
	}
	text := string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("%w: file is empty", ErrUnsupportedFile)
	}
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}
	return mimeType, text, nil
}
