package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"findash/internal/ai"
	"findash/internal/dashboard"
	"findash/internal/doccontext"
	"findash/internal/logging"
	"findash/internal/model"
	"findash/internal/repository"
)

var (
	ErrPromptEmpty    = errors.New("prompt is empty")
	ErrLLMConfig      = errors.New("llm config is invalid")
	ErrLLMRequest     = errors.New("llm request failed")
	ErrMessageEnqueue = errors.New("message enqueue failed")
)

const emptyReply = "The model returned an empty response."

type ChatCompleter interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

type ChatService struct {
	access       conversationAccess
	conversation *repository.ConversationRepository
	messages     *repository.MessageRepository
	assembler    *doccontext.Assembler
	verifier     *doccontext.Verifier
	llm          ChatCompleter
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	llmConfig    ai.ChatConfig
	systemPrompt string
	maxContext   int
	logger       *zap.Logger
}

type ChatDeps struct {
	Conversations *repository.ConversationRepository
	Messages      *repository.MessageRepository
	Assembler     *doccontext.Assembler
	Verifier      *doccontext.Verifier
	LLM           ChatCompleter
	Publisher     AsyncMessagePublisher
	HistoryCache  HistoryCache
	Logger        *zap.Logger
}

type ChatSettings struct {
	LLM          ai.ChatConfig
	SystemPrompt string
	// MaxContext is how many earlier messages are replayed to the model.
	MaxContext int
}

type ChatInput struct {
	UserID         uint
	ConversationID string
	Prompt         string
}

// ContextInfo describes the document context that went out with the prompt.
type ContextInfo struct {
	Stage     string `json:"stage"`
	FileCount int    `json:"file_count"`
	Chars     int    `json:"chars"`
	Placement string `json:"placement"`
}

type ChatResult struct {
	Dashboard      *dashboard.Dashboard `json:"dashboard"`
	Reply          string               `json:"reply"`
	ConversationID string               `json:"conversation_id"`
	Context        ContextInfo          `json:"context"`
}

// chatTurn is a prepared request: conversation resolved and prompt built. Nothing is
// stored until the model has answered.
type chatTurn struct {
	conversation *model.Conversation
	userID       uint
	prompt       string
	askedAt      time.Time
	messages     []ai.ChatMessage
	info         ContextInfo
}

func NewChatService(deps ChatDeps, settings ChatSettings) *ChatService {
	if settings.MaxContext < 0 {
		settings.MaxContext = 0
	}
	return &ChatService{
		access:       conversationAccess{repo: deps.Conversations},
		conversation: deps.Conversations,
		messages:     deps.Messages,
		assembler:    deps.Assembler,
		verifier:     deps.Verifier,
		llm:          deps.LLM,
		publisher:    deps.Publisher,
		historyCache: deps.HistoryCache,
		llmConfig:    settings.LLM,
		systemPrompt: strings.TrimSpace(settings.SystemPrompt),
		maxContext:   settings.MaxContext,
		logger:       logging.OrNop(deps.Logger),
	}
}

func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatResult, error) {
	turn, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	reply, err := s.llm.Complete(ctx, s.llmConfig, turn.messages)
	if err != nil {
		s.logger.Error("llm completion failed", zap.String("conversation_id", turn.conversation.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLLMRequest, err)
	}
	return s.finish(ctx, turn, reply)
}

// StreamChat is Chat with the reply delivered piece by piece through onChunk. The
// returned result carries the complete reply.
func (s *ChatService) StreamChat(ctx context.Context, input ChatInput, onChunk func(string) error) (*ChatResult, error) {
	turn, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	reply, err := s.llm.StreamComplete(ctx, s.llmConfig, turn.messages, onChunk)
	if err != nil {
		s.logger.Error("llm stream failed", zap.String("conversation_id", turn.conversation.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLLMRequest, err)
	}
	return s.finish(ctx, turn, reply)
}

func (s *ChatService) prepare(ctx context.Context, input ChatInput) (*chatTurn, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, ErrPromptEmpty
	}
	if s.llm == nil || s.llmConfig.BaseURL == "" || s.llmConfig.APIKey == "" || s.llmConfig.Model == "" {
		return nil, ErrLLMConfig
	}

	conversation, err := s.access.getOrCreate(ctx, input.UserID, input.ConversationID, prompt)
	if err != nil {
		return nil, err
	}

	recent, err := s.messages.ListRecentByConversationID(ctx, conversation.ID, s.maxContext)
	if err != nil {
		return nil, err
	}

	dc := s.documentContext(ctx, conversation.ID)
	messages, placement := s.verifier.Ensure(s.buildMessages(dc, recent, prompt), dc)

	return &chatTurn{
		conversation: conversation,
		userID:       input.UserID,
		prompt:       prompt,
		askedAt:      time.Now(),
		messages:     messages,
		info: ContextInfo{
			Stage:     dc.Stage,
			FileCount: dc.FileCount,
			Chars:     dc.Chars,
			Placement: string(placement),
		},
	}, nil
}

// documentContext assembles the conversation's files and rejects a context that was
// built for any other conversation.
func (s *ChatService) documentContext(ctx context.Context, conversationID string) doccontext.Context {
	dc := s.assembler.Assemble(ctx, conversationID)
	if !dc.BelongsTo(conversationID) {
		s.logger.Error("doccontext.conversation_mismatch",
			zap.String("conversation_id", conversationID),
			zap.String("context_conversation_id", dc.ConversationID))
		return doccontext.Context{ConversationID: conversationID}
	}
	return dc
}

func (s *ChatService) buildMessages(dc doccontext.Context, recent []model.Message, prompt string) []ai.ChatMessage {
	system := s.systemPrompt
	if !dc.Empty() {
		if system == "" {
			system = dc.Text
		} else {
			system = system + "\n\n" + dc.Text
		}
	}

	messages := make([]ai.ChatMessage, 0, len(recent)+2)
	if system != "" {
		messages = append(messages, ai.ChatMessage{Role: model.RoleSystem, Content: system})
	}
	for _, item := range recent {
		role := item.Role
		if role == "" {
			role = model.RoleUser
		}
		if role == model.RoleSystem {
			continue
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: item.Content})
	}
	return append(messages, ai.ChatMessage{Role: model.RoleUser, Content: prompt})
}

func (s *ChatService) finish(ctx context.Context, turn *chatTurn, reply string) (*ChatResult, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = emptyReply
	}
	id := turn.conversation.ID

	clean, d, err := dashboard.Extract(reply)
	if err != nil {
		s.logger.Warn("reply dashboard ignored", zap.String("conversation_id", id), zap.Error(err))
	}

	// both turns are stored together; the raw reply keeps the dashboard rebuildable
	answeredAt := time.Now()
	if !answeredAt.After(turn.askedAt) {
		answeredAt = turn.askedAt.Add(time.Microsecond)
	}
	for _, msg := range []model.Message{
		{ConversationID: id, UserID: turn.userID, Role: model.RoleUser, Content: turn.prompt, CreatedAt: turn.askedAt},
		{ConversationID: id, UserID: turn.userID, Role: model.RoleAssistant, Content: reply, CreatedAt: answeredAt},
	} {
		if err := s.publish(ctx, msg); err != nil {
			return nil, err
		}
	}
	if err := s.conversation.Touch(ctx, id); err != nil {
		s.logger.Warn("touch conversation failed", zap.String("conversation_id", id), zap.Error(err))
	}

	s.logger.Info("chat completed",
		zap.String("conversation_id", id),
		zap.String("context_stage", turn.info.Stage),
		zap.String("context_placement", turn.info.Placement),
		zap.Int("context_files", turn.info.FileCount),
		zap.Bool("dashboard", d != nil))

	return &ChatResult{
		Dashboard:      d,
		Reply:          clean,
		ConversationID: id,
		Context:        turn.info,
	}, nil
}

func (s *ChatService) publish(ctx context.Context, msg model.Message) error {
	if s.publisher == nil {
		return ErrMessageEnqueue
	}
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, msg.ConversationID)
		_ = s.historyCache.DeleteHistory(ctx, msg.ConversationID)
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("enqueue message failed", zap.String("conversation_id", msg.ConversationID), zap.Error(err))
		return ErrMessageEnqueue
	}
	return nil
}
