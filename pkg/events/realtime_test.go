package events

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestDecodeRealtimeAudioDelta(t *testing.T) {
	delta := base64.StdEncoding.EncodeToString([]byte{0x10, 0x20})
	ev, err := DecodeRealtime([]byte(`{"type":"response.audio.delta","delta":"` + delta + `"}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ev.Type != TypeAudioOut || len(ev.Audio) != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeRealtimeTranscripts(t *testing.T) {
	ev, err := DecodeRealtime([]byte(`{"type":"response.audio_transcript.done","transcript":"안녕"}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ev.Type != TypeAssistantUtteranceFinal || ev.Text != "안녕" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	ev, err = DecodeRealtime([]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"모닝콜 해줘"}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ev.Type != TypeUserUtteranceFinal || ev.Text != "모닝콜 해줘" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeRealtimeSpeechStarted(t *testing.T) {
	ev, err := DecodeRealtime([]byte(`{"type":"input_audio_buffer.speech_started"}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ev.Type != TypeUserSpeechStarted {
		t.Fatalf("expected speech started, got %s", ev.Type)
	}
}

func TestDecodeRealtimeError(t *testing.T) {
	ev, err := DecodeRealtime([]byte(`{"type":"error","error":{"message":"bad"}}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ev.Type != TypeProviderError || ev.Detail == "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeRealtimeUnknown(t *testing.T) {
	ev, err := DecodeRealtime([]byte(`{"type":"session.created"}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ev.Type != TypeUnknown || ev.Raw != "session.created" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestSessionUpdateMessage(t *testing.T) {
	msg := SessionUpdateMessage(SessionConfig{
		Instructions:       "be kind",
		Voice:              "shimmer",
		InputAudioFormat:   "pcm16",
		OutputAudioFormat:  "pcm16",
		TranscriptionModel: "whisper-1",
		TurnDetection: TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
		},
	})
	var decoded struct {
		Type    string `json:"type"`
		Session struct {
			Instructions  string   `json:"instructions"`
			Voice         string   `json:"voice"`
			Modalities    []string `json:"modalities"`
			TurnDetection struct {
				Type              string  `json:"type"`
				Threshold         float64 `json:"threshold"`
				SilenceDurationMS int     `json:"silence_duration_ms"`
			} `json:"turn_detection"`
			Transcription map[string]any `json:"input_audio_transcription"`
		} `json:"session"`
	}
	if err := json.Unmarshal(msg, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "session.update" {
		t.Fatalf("expected session.update, got %s", decoded.Type)
	}
	if decoded.Session.Voice != "shimmer" || decoded.Session.Instructions != "be kind" {
		t.Fatalf("unexpected session: %+v", decoded.Session)
	}
	if decoded.Session.TurnDetection.Type != "server_vad" || decoded.Session.TurnDetection.SilenceDurationMS != 500 {
		t.Fatalf("unexpected turn detection: %+v", decoded.Session.TurnDetection)
	}
	if decoded.Session.Transcription["model"] != "whisper-1" {
		t.Fatalf("expected transcription model, got %v", decoded.Session.Transcription)
	}
}

func TestAudioAppendMessage(t *testing.T) {
	msg := AudioAppendMessage([]byte{0x01})
	var decoded struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}
	if err := json.Unmarshal(msg, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "input_audio_buffer.append" {
		t.Fatalf("expected append, got %s", decoded.Type)
	}
	audio, err := base64.StdEncoding.DecodeString(decoded.Audio)
	if err != nil || len(audio) != 1 {
		t.Fatalf("unexpected audio: %v %v", audio, err)
	}
}
