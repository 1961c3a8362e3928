package events

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hanavoice/hana/pkg/errorsx"
)

// TurnDetection configures the provider-side voice activity segmentation.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

// SessionConfig is the one initialization message sent on the model leg.
type SessionConfig struct {
	Instructions       string
	Voice              string
	InputAudioFormat   string
	OutputAudioFormat  string
	TranscriptionModel string
	TurnDetection      TurnDetection
}

type realtimeEvent struct {
	Type       string          `json:"type"`
	Delta      string          `json:"delta"`
	Transcript string          `json:"transcript"`
	Error      json.RawMessage `json:"error"`
}

// DecodeRealtime classifies one inbound realtime model frame.
func DecodeRealtime(msg []byte) (Event, error) {
	var evt realtimeEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		return Event{}, errorsx.Wrap(fmt.Errorf("realtime frame: %w", err), errorsx.ReasonRealtimeProtocol)
	}
	switch evt.Type {
	case "response.audio.delta":
		audio, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil {
			return Event{}, errorsx.Wrap(fmt.Errorf("realtime audio delta: %w", err), errorsx.ReasonRealtimeProtocol)
		}
		return Event{Type: TypeAudioOut, Audio: audio}, nil
	case "response.audio_transcript.done":
		return Event{Type: TypeAssistantUtteranceFinal, Text: evt.Transcript}, nil
	case "conversation.item.input_audio_transcription.completed":
		return Event{Type: TypeUserUtteranceFinal, Text: evt.Transcript}, nil
	case "input_audio_buffer.speech_started":
		return Event{Type: TypeUserSpeechStarted}, nil
	case "error":
		return Event{Type: TypeProviderError, Detail: string(evt.Error)}, nil
	default:
		return Event{Type: TypeUnknown, Raw: evt.Type}, nil
	}
}

// SessionUpdateMessage builds the session.update initialization frame.
func SessionUpdateMessage(cfg SessionConfig) []byte {
	session := map[string]any{
		"instructions":        cfg.Instructions,
		"voice":               cfg.Voice,
		"input_audio_format":  cfg.InputAudioFormat,
		"output_audio_format": cfg.OutputAudioFormat,
		"modalities":          []string{"text", "audio"},
		"turn_detection": map[string]any{
			"type":                cfg.TurnDetection.Type,
			"threshold":           cfg.TurnDetection.Threshold,
			"prefix_padding_ms":   cfg.TurnDetection.PrefixPaddingMS,
			"silence_duration_ms": cfg.TurnDetection.SilenceDurationMS,
		},
	}
	if cfg.TranscriptionModel != "" {
		session["input_audio_transcription"] = map[string]any{
			"model": cfg.TranscriptionModel,
		}
	}
	msg := map[string]any{
		"type":    "session.update",
		"session": session,
	}
	b, _ := json.Marshal(msg)
	return b
}

// AudioAppendMessage builds the input_audio_buffer.append frame carrying
// one transcoded inbound audio chunk.
func AudioAppendMessage(audio []byte) []byte {
	msg := map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(audio),
	}
	b, _ := json.Marshal(msg)
	return b
}
