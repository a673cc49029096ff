// Package stream defines the partial-message fragments produced by a chat
// backend and classifies them into thinking and answer deltas.
package stream

import "time"

// Channel identifies which output stream a delta belongs to.
type Channel int

const (
	ChannelThinking Channel = iota
	ChannelAnswer
)

func (c Channel) String() string {
	switch c {
	case ChannelThinking:
		return "thinking"
	case ChannelAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// Usage holds token accounting reported on the final fragment of a response.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	PromptDuration   time.Duration
	EvalDuration     time.Duration
	TotalDuration    time.Duration
}

// TokensPerSecond returns the generation rate, or 0 if it cannot be computed.
func (u Usage) TokensPerSecond() float64 {
	if u.EvalDuration <= 0 {
		return 0
	}
	return float64(u.CompletionTokens) / u.EvalDuration.Seconds()
}

// Fragment is one incremental unit of a streamed model response, decoded
// once at the transport boundary. An empty Thinking or Content means the
// fragment carries no delta for that channel.
type Fragment struct {
	Thinking string
	Content  string
	Done     bool   // last fragment of the response
	Usage    *Usage // only set when Done
	Err      error  // transport failure; no further fragments follow
}

// Delta is a piece of text destined for one channel.
type Delta struct {
	Channel Channel
	Text    string
}

// Classify splits a fragment into its deltas. A fragment may carry both a
// thinking and an answer delta, in which case thinking comes first, or
// neither (keep-alive), in which case nil is returned.
func Classify(f Fragment) []Delta {
	var deltas []Delta
	if f.Thinking != "" {
		deltas = append(deltas, Delta{Channel: ChannelThinking, Text: f.Thinking})
	}
	if f.Content != "" {
		deltas = append(deltas, Delta{Channel: ChannelAnswer, Text: f.Content})
	}
	return deltas
}
