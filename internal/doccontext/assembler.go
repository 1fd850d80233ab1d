package doccontext

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"findash/internal/logging"
)

// Strategy is one way of finding a conversation's documents. Returning no documents,
// or an error, hands over to the next strategy.
type Strategy interface {
	Name() string
	Documents(ctx context.Context, conversationID string) ([]Document, error)
}

type Assembler struct {
	strategies []Strategy
	logger     *zap.Logger
}

func NewAssembler(logger *zap.Logger, strategies ...Strategy) *Assembler {
	return &Assembler{
		strategies: strategies,
		logger:     logging.OrNop(logger),
	}
}

// Assemble runs the strategies in order and returns the first non-empty context.
// It never fails: when every strategy comes up empty the result is an empty context
// for the same conversation id.
func (a *Assembler) Assemble(ctx context.Context, conversationID string) Context {
	empty := Context{ConversationID: conversationID}
	if strings.TrimSpace(conversationID) == "" {
		return empty
	}

	for _, s := range a.strategies {
		if ctx.Err() != nil {
			a.logger.Warn("doccontext.cancelled",
				zap.String("conversation_id", conversationID),
				zap.String("stage", s.Name()),
				zap.Error(ctx.Err()))
			return empty
		}

		log := a.logger.With(zap.String("conversation_id", conversationID), zap.String("stage", s.Name()))
		docs, err := s.Documents(ctx, conversationID)
		if err != nil {
			log.Warn("doccontext."+s.Name()+".failed", zap.Error(err))
			continue
		}

		dc := Build(conversationID, docs)
		if dc.Empty() {
			log.Info("doccontext." + s.Name() + ".empty")
			continue
		}
		dc.Stage = s.Name()
		log.Info("doccontext."+s.Name(),
			zap.Int("files", dc.FileCount),
			zap.Int("chars", dc.Chars))
		return dc
	}

	a.logger.Info("doccontext.empty", zap.String("conversation_id", conversationID))
	return empty
}
