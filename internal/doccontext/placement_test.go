package doccontext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/ai"
	"findash/internal/model"
)

const basePrompt = "You are a financial analysis assistant."

func promptWith(contextText string) []ai.ChatMessage {
	system := basePrompt
	if contextText != "" {
		system += "\n\n" + contextText
	}
	return []ai.ChatMessage{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: "earlier question"},
		{Role: model.RoleAssistant, Content: "earlier answer"},
		{Role: model.RoleUser, Content: "can u analyze this document"},
	}
}

func sampleContext(chars int) Context {
	return Build("C1", []Document{{FileID: 1, Name: "10-K.txt", Content: strings.Repeat("k", chars)}})
}

func TestEnsureVerifiesContextAlreadyInSystemMessage(t *testing.T) {
	dc := sampleContext(500)
	v := NewVerifier(0, nil)

	out, placement := v.Ensure(promptWith(dc.Text), dc)

	assert.Equal(t, PlacementSystem, placement)
	assert.True(t, Contains(out, dc.Text))
	assert.Equal(t, "can u analyze this document", out[len(out)-1].Content)
}

func TestEnsureInjectsIntoSystemMessageWhenMissing(t *testing.T) {
	dc := sampleContext(500)
	v := NewVerifier(0, nil)

	out, placement := v.Ensure(promptWith(""), dc)

	require.Equal(t, PlacementSystemInjected, placement)
	assert.True(t, strings.HasPrefix(out[0].Content, dc.Text))
	assert.True(t, strings.HasSuffix(out[0].Content, basePrompt))
}

func TestEnsureInjectsWhenCapCutsTrailingContext(t *testing.T) {
	dc := sampleContext(500)
	limit := len([]rune(dc.Text)) + 10
	v := NewVerifier(limit, nil)

	// base prompt + context exceeds the cap, context alone fits at the head
	out, placement := v.Ensure(promptWith(dc.Text), dc)

	assert.Equal(t, PlacementSystemInjected, placement)
	assert.True(t, Contains(out, dc.Text))
	assert.LessOrEqual(t, len([]rune(out[0].Content)), limit)
}

func TestEnsurePrependsToUserWhenSystemCannotHoldContext(t *testing.T) {
	dc := sampleContext(5000)
	v := NewVerifier(1000, nil)

	out, placement := v.Ensure(promptWith(dc.Text), dc)

	require.Equal(t, PlacementUser, placement)
	last := out[len(out)-1]
	assert.Equal(t, model.RoleUser, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, dc.Text))
	assert.True(t, strings.HasSuffix(last.Content, "can u analyze this document"))
	assert.Equal(t, "earlier question", out[1].Content, "only the latest user turn carries the context")
	assert.Equal(t, basePrompt, out[0].Content, "no truncated copy is left in the system message")
}

func TestEnsureInjectedSystemMessageHoldsOneCopy(t *testing.T) {
	dc := sampleContext(400)
	in := promptWith(dc.Text)
	limit := len([]rune(in[0].Content)) - 1
	v := NewVerifier(limit, nil)

	out, placement := v.Ensure(in, dc)

	require.Equal(t, PlacementSystemInjected, placement)
	assert.Equal(t, dc.Text+"\n\n"+basePrompt[:len(basePrompt)-1], out[0].Content)
	assert.Equal(t, 1, strings.Count(out[0].Content, "[document context:"))
}

func TestEnsureCreatesSystemMessageWhenAbsent(t *testing.T) {
	dc := sampleContext(100)
	v := NewVerifier(0, nil)

	out, placement := v.Ensure([]ai.ChatMessage{{Role: model.RoleUser, Content: "hi"}}, dc)

	require.Equal(t, PlacementSystemInjected, placement)
	require.Len(t, out, 2)
	assert.Equal(t, model.RoleSystem, out[0].Role)
	assert.Equal(t, dc.Text, out[0].Content)
}

func TestEnsureAppendsUserMessageWhenNoneExists(t *testing.T) {
	dc := sampleContext(300)
	v := NewVerifier(50, nil)

	out, placement := v.Ensure([]ai.ChatMessage{{Role: model.RoleSystem, Content: basePrompt}}, dc)

	require.Equal(t, PlacementUser, placement)
	assert.Equal(t, model.RoleUser, out[len(out)-1].Role)
	assert.Equal(t, dc.Text, out[len(out)-1].Content)
}

func TestEnsureWithEmptyContextOnlyCaps(t *testing.T) {
	v := NewVerifier(10, nil)

	out, placement := v.Ensure(promptWith(""), Context{ConversationID: "C1"})

	assert.Equal(t, PlacementNone, placement)
	assert.Equal(t, basePrompt[:10], out[0].Content)
}

func TestEnsureDoesNotMutateInput(t *testing.T) {
	dc := sampleContext(200)
	in := promptWith("")
	snapshot := make([]ai.ChatMessage, len(in))
	copy(snapshot, in)

	_, _ = NewVerifier(0, nil).Ensure(in, dc)
	_, _ = NewVerifier(20, nil).Ensure(in, dc)

	assert.Equal(t, snapshot, in)
}
