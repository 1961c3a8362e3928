package events

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hanavoice/hana/pkg/errorsx"
)

type twilioStart struct {
	CallSID  string `json:"callSid"`
	StreamID string `json:"streamSid"`
}

type twilioMedia struct {
	Payload string `json:"payload"`
}

type twilioEvent struct {
	Event string       `json:"event"`
	Start *twilioStart `json:"start,omitempty"`
	Media *twilioMedia `json:"media,omitempty"`
}

// DecodeTelephony classifies one inbound telephony media-stream frame.
// Frames that are valid JSON but carry an unhandled event discriminator
// come back as TypeUnknown; malformed frames return an error the caller
// logs and skips.
func DecodeTelephony(msg []byte) (Event, error) {
	var evt twilioEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		return Event{}, errorsx.Wrap(fmt.Errorf("telephony frame: %w", err), errorsx.ReasonTelephonyProtocol)
	}
	switch evt.Event {
	case "start":
		if evt.Start == nil {
			return Event{}, errorsx.Wrap(fmt.Errorf("telephony start frame missing body"), errorsx.ReasonTelephonyProtocol)
		}
		return Event{Type: TypeStreamStarted, StreamID: evt.Start.StreamID, CallID: evt.Start.CallSID}, nil
	case "media":
		if evt.Media == nil {
			return Event{}, errorsx.Wrap(fmt.Errorf("telephony media frame missing body"), errorsx.ReasonTelephonyProtocol)
		}
		payload, err := base64.StdEncoding.DecodeString(evt.Media.Payload)
		if err != nil {
			return Event{}, errorsx.Wrap(fmt.Errorf("telephony media payload: %w", err), errorsx.ReasonTelephonyProtocol)
		}
		return Event{Type: TypeAudioIn, Audio: payload}, nil
	case "stop":
		return Event{Type: TypeStreamStopped}, nil
	default:
		return Event{Type: TypeUnknown, Raw: evt.Event}, nil
	}
}

// MediaMessage builds an outbound media frame addressed to a stream.
func MediaMessage(streamID string, payload []byte) []byte {
	msg := map[string]any{
		"event":     "media",
		"streamSid": streamID,
		"media": map[string]any{
			"payload": base64.StdEncoding.EncodeToString(payload),
		},
	}
	b, _ := json.Marshal(msg)
	return b
}

// ClearMessage builds the outbound frame that flushes buffered playback
// audio on the telephony leg.
func ClearMessage(streamID string) []byte {
	msg := map[string]any{
		"event":     "clear",
		"streamSid": streamID,
	}
	b, _ := json.Marshal(msg)
	return b
}
