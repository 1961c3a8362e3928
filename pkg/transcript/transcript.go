// Package transcript holds the conversation data model shared by the call
// bridge and the post-call extraction pipeline.
package transcript

import (
	"strings"
	"time"
)

// Speaker identifies which side of the call produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one finalized utterance. Immutable once appended.
type Turn struct {
	Role    Speaker `json:"role"`
	Content string  `json:"content"`
}

// CallRecord is the durable form of one completed call. Written once at
// call teardown, never mutated afterwards.
type CallRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Conversation []Turn    `json:"conversation"`
}

// Render flattens a conversation into "[role] content" lines for prompting.
func Render(turns []Turn) string {
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("[")
		sb.WriteString(string(t.Role))
		sb.WriteString("] ")
		sb.WriteString(t.Content)
	}
	return sb.String()
}
