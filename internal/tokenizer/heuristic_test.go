package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/pkg/types"
)

func TestEncode_RoundsUp(t *testing.T) {
	h := NewHeuristic(4)

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 100), 25},
	}

	for _, tt := range tests {
		ids, err := h.Encode(tt.text)
		require.NoError(t, err)
		assert.Len(t, ids, tt.want, "text %q", tt.text)
	}
}

func TestNewHeuristic_DefaultOnNonPositive(t *testing.T) {
	h := NewHeuristic(0)
	ids, err := h.Encode("abcdefgh")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestApplyChatTemplate(t *testing.T) {
	h := NewHeuristic(4)
	msgs := []types.Message{
		{Role: types.RoleSystem, Content: "sys"},
		{Role: types.RoleUser, Content: "hi"},
	}

	got, err := h.ApplyChatTemplate(msgs, true)

	require.NoError(t, err)
	assert.Equal(t, "<|im_start|>system\nsys<|im_end|>\n<|im_start|>user\nhi<|im_end|>\n<|im_start|>assistant\n", got)
}

func TestApplyChatTemplate_NoGenerationPrompt(t *testing.T) {
	h := NewHeuristic(4)

	got, err := h.ApplyChatTemplate([]types.Message{{Role: types.RoleUser, Content: "hi"}}, false)

	require.NoError(t, err)
	assert.False(t, strings.HasSuffix(got, "<|im_start|>assistant\n"))
}

func TestApplyChatTemplate_EmptyRole(t *testing.T) {
	h := NewHeuristic(4)
	_, err := h.ApplyChatTemplate([]types.Message{{Role: "", Content: "x"}}, true)
	assert.Error(t, err)
}
