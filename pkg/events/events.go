// Package events translates telephony media-stream frames and realtime
// model frames into one small internal vocabulary so the bridge never
// touches either provider's wire format directly.
package events

// Type classifies one wire event from either leg.
type Type string

const (
	TypeStreamStarted           Type = "stream_started"
	TypeStreamStopped           Type = "stream_stopped"
	TypeAudioIn                 Type = "audio_in"
	TypeAudioOut                Type = "audio_out"
	TypeUserSpeechStarted       Type = "user_speech_started"
	TypeUserUtteranceFinal      Type = "user_utterance_final"
	TypeAssistantUtteranceFinal Type = "assistant_utterance_final"
	TypeProviderError           Type = "provider_error"
	TypeUnknown                 Type = "unknown"
)

// Event is one classified wire event. Only the fields relevant to the
// event's type are populated.
type Event struct {
	Type     Type
	StreamID string
	CallID   string
	Audio    []byte
	Text     string
	Detail   string
	Raw      string
}
