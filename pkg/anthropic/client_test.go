package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "hello "},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "world"},
		},
	}
	assert.Equal(t, "hello world", resp.Text())

	empty := &MessageResponse{}
	assert.Empty(t, empty.Text())
}

func TestTokenUsage_Add(t *testing.T) {
	u := TokenUsage{InputTokens: 100, OutputTokens: 20}
	u.Add(TokenUsage{InputTokens: 50, OutputTokens: 5})
	assert.Equal(t, int64(150), u.InputTokens)
	assert.Equal(t, int64(25), u.OutputTokens)
}

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "user", Content: "look at this", ImageURLs: []string{"https://cdn.example.com/ad.png"}},
	})

	assert.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	// Image attachment produces an extra content block ahead of the text.
	assert.Len(t, msgs[2].Content, 2)
	assert.Len(t, msgs[0].Content, 1)
}
