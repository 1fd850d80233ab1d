// Package doccontext assembles the text of a conversation's uploaded files and makes sure
// it reaches the language model.
//
// Assembly walks an ordered list of strategies until one yields content. Placement then
// verifies the text is present in the outgoing messages, escalating from the system
// message to the user message when it is not.
package doccontext

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Document is one file's extracted text.
type Document struct {
	FileID  uint
	Name    string
	Content string
}

// Context is the assembled document text for a single conversation.
type Context struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"-"`
	FileCount      int    `json:"file_count"`
	Chars          int    `json:"chars"`
	// Stage names the strategy that produced the text; empty when nothing was found.
	Stage string `json:"stage,omitempty"`
}

// Empty reports whether there is no document text to send.
func (c Context) Empty() bool {
	return strings.TrimSpace(c.Text) == ""
}

// BelongsTo reports whether the context was built for conversationID.
func (c Context) BelongsTo(conversationID string) bool {
	return c.ConversationID == conversationID
}

// Build concatenates docs in order. Documents without content are skipped; if none
// remain the returned context is empty.
func Build(conversationID string, docs []Document) Context {
	kept := make([]Document, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == 0 {
		return Context{ConversationID: conversationID}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[document context: conversation=%s files=%d]\n", conversationID, len(kept))
	chars := 0
	for i, d := range kept {
		n := utf8.RuneCountInString(d.Content)
		chars += n
		name := strings.TrimSpace(d.Name)
		if name == "" {
			name = fmt.Sprintf("file-%d", d.FileID)
		}
		fmt.Fprintf(&b, "\n### %d. %s (%d chars)\n", i+1, name, n)
		b.WriteString(d.Content)
		if !strings.HasSuffix(d.Content, "\n") {
			b.WriteByte('\n')
		}
	}

	return Context{
		ConversationID: conversationID,
		Text:           b.String(),
		FileCount:      len(kept),
		Chars:          chars,
	}
}
