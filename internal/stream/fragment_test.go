package stream

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   Fragment
		want []Delta
	}{
		{
			name: "thinking only",
			in:   Fragment{Thinking: "hmm"},
			want: []Delta{{Channel: ChannelThinking, Text: "hmm"}},
		},
		{
			name: "answer only",
			in:   Fragment{Content: "42"},
			want: []Delta{{Channel: ChannelAnswer, Text: "42"}},
		},
		{
			name: "both keeps thinking first",
			in:   Fragment{Thinking: "so", Content: "yes"},
			want: []Delta{
				{Channel: ChannelThinking, Text: "so"},
				{Channel: ChannelAnswer, Text: "yes"},
			},
		},
		{
			name: "keep-alive",
			in:   Fragment{},
			want: nil,
		},
		{
			name: "done with no text",
			in:   Fragment{Done: true, Usage: &Usage{CompletionTokens: 3}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestClassify_PreservesOrderAcrossFragments(t *testing.T) {
	fragments := []Fragment{
		{Thinking: "a"},
		{},
		{Thinking: "b", Content: "x"},
		{Content: "y"},
		{Thinking: "c"},
	}

	var thinking, answer strings.Builder
	for _, f := range fragments {
		for _, d := range Classify(f) {
			switch d.Channel {
			case ChannelThinking:
				thinking.WriteString(d.Text)
			case ChannelAnswer:
				answer.WriteString(d.Text)
			}
		}
	}

	require.Equal(t, "abc", thinking.String())
	require.Equal(t, "xy", answer.String())
}

func TestChannelString(t *testing.T) {
	assert.Equal(t, "thinking", ChannelThinking.String())
	assert.Equal(t, "answer", ChannelAnswer.String())
	assert.Equal(t, "unknown", Channel(9).String())
}

func TestUsage_TokensPerSecond(t *testing.T) {
	u := Usage{CompletionTokens: 50, EvalDuration: 2 * time.Second}
	assert.InDelta(t, 25.0, u.TokensPerSecond(), 0.001)
	assert.Zero(t, Usage{CompletionTokens: 5}.TokensPerSecond())
}
