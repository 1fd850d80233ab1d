package doccontext

import (
	"strings"

	"go.uber.org/zap"

	"findash/internal/ai"
	"findash/internal/logging"
	"findash/internal/model"
)

// Placement records where the document text ended up in the outgoing messages.
type Placement string

const (
	PlacementNone           Placement = "none"
	PlacementSystem         Placement = "system"
	PlacementSystemInjected Placement = "system_injected"
	PlacementUser           Placement = "user_prepended"
)

// Verifier checks that assembled document text survives into the final message list.
type Verifier struct {
	systemLimit int
	logger      *zap.Logger
}

// NewVerifier caps system messages at systemLimit characters (0 = no cap), mirroring
// what the provider accepts.
func NewVerifier(systemLimit int, logger *zap.Logger) *Verifier {
	if systemLimit < 0 {
		systemLimit = 0
	}
	return &Verifier{systemLimit: systemLimit, logger: logging.OrNop(logger)}
}

// Ensure returns the messages to send and where the context sits in them. The input
// slice is not modified. With a non-empty context the result always contains dc.Text.
func (v *Verifier) Ensure(messages []ai.ChatMessage, dc Context) ([]ai.ChatMessage, Placement) {
	base := CapSystem(cloneMessages(messages), v.systemLimit)
	if dc.Empty() {
		return base, PlacementNone
	}
	log := v.logger.With(zap.String("conversation_id", dc.ConversationID))

	if Contains(base, dc.Text) {
		log.Info("doccontext.verified", zap.String("placement", string(PlacementSystem)))
		return base, PlacementSystem
	}

	// any copy the cap cut short is dropped so the cap is spent on instructions
	injected := CapSystem(injectSystem(withoutText(messages, dc.Text), dc.Text), v.systemLimit)
	if Contains(injected, dc.Text) {
		log.Warn("doccontext.system_injected", zap.Int("chars", dc.Chars))
		return injected, PlacementSystemInjected
	}

	prepended := prependUser(CapSystem(withoutText(messages, dc.Text), v.systemLimit), dc.Text)
	log.Warn("doccontext.user_prepended",
		zap.Int("chars", dc.Chars),
		zap.Int("system_limit", v.systemLimit))
	return prepended, PlacementUser
}

// Contains reports whether any message carries text verbatim.
func Contains(messages []ai.ChatMessage, text string) bool {
	if text == "" {
		return false
	}
	for _, m := range messages {
		if strings.Contains(m.Content, text) {
			return true
		}
	}
	return false
}

// CapSystem truncates every system message to limit runes. limit <= 0 leaves them alone.
func CapSystem(messages []ai.ChatMessage, limit int) []ai.ChatMessage {
	if limit <= 0 {
		return messages
	}
	for i := range messages {
		if messages[i].Role != model.RoleSystem {
			continue
		}
		runes := []rune(messages[i].Content)
		if len(runes) > limit {
			messages[i].Content = string(runes[:limit])
		}
	}
	return messages
}

// withoutText returns a copy of messages with text removed from the system messages.
// A system message left empty is dropped.
func withoutText(messages []ai.ChatMessage, text string) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			m.Content = strings.TrimSpace(strings.Replace(m.Content, text, "", 1))
			if m.Content == "" {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func injectSystem(messages []ai.ChatMessage, text string) []ai.ChatMessage {
	for i := range messages {
		if messages[i].Role == model.RoleSystem {
			if messages[i].Content == "" {
				messages[i].Content = text
			} else {
				messages[i].Content = text + "\n\n" + messages[i].Content
			}
			return messages
		}
	}
	return append([]ai.ChatMessage{{Role: model.RoleSystem, Content: text}}, messages...)
}

func prependUser(messages []ai.ChatMessage, text string) []ai.ChatMessage {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			messages[i].Content = text + "\n\n" + messages[i].Content
			return messages
		}
	}
	return append(messages, ai.ChatMessage{Role: model.RoleUser, Content: text})
}

func cloneMessages(messages []ai.ChatMessage) []ai.ChatMessage {
	out := make([]ai.ChatMessage, len(messages))
	copy(out, messages)
	return out
}
