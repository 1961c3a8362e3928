// Package bridge owns the lifetime of one phone call: it opens the model
// leg, relays audio and control events between the two legs, handles
// barge-in, and hands the accumulated transcript to the post-call sink.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hanavoice/hana/pkg/audio"
	"github.com/hanavoice/hana/pkg/errorsx"
	"github.com/hanavoice/hana/pkg/events"
	"github.com/hanavoice/hana/pkg/logging"
	"github.com/hanavoice/hana/pkg/transcript"
)

// State is the call session lifecycle. CLOSED is terminal.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Leg is one side of the relay: a stream of wire frames.
type Leg interface {
	Read() ([]byte, error)
	Send(msg []byte) error
	Close() error
}

// ModelDialer opens the model leg for one call.
type ModelDialer func(ctx context.Context) (Leg, error)

// Hooks receive session lifecycle callbacks.
type Hooks struct {
	// OnCallEnd is handed the finalized conversation after the session
	// reaches CLOSED. Runs on the session goroutine.
	OnCallEnd func(ctx context.Context, conversation []transcript.Turn)
}

type Config struct {
	TraceID string

	TelephonyFormat   audio.Format
	ModelInputFormat  audio.Format
	ModelOutputFormat audio.Format

	// FallbackNotice is invoked with the provider call identifier when the
	// model leg cannot be opened, so the caller hears a spoken notice
	// instead of dead silence before the line drops.
	FallbackNotice func(ctx context.Context, callID string)

	Hooks Hooks
}

func (c Config) withDefaults() Config {
	if c.TelephonyFormat == (audio.Format{}) {
		c.TelephonyFormat = audio.MuLaw8k
	}
	if c.ModelInputFormat == (audio.Format{}) {
		c.ModelInputFormat = audio.PCM16k
	}
	if c.ModelOutputFormat == (audio.Format{}) {
		c.ModelOutputFormat = audio.PCM24k
	}
	return c
}

// Session is the live state of one bridged call. It is exclusively owned
// by the goroutine that calls Run and is discarded after CLOSED.
type Session struct {
	cfg    Config
	logger *slog.Logger

	state atomic.Int32

	// streamID has one writer (the telephony loop); the model loop only
	// reads it. turns are appended by both loops, each for its own
	// speaker role, merge-ordered by arrival.
	mu       sync.Mutex
	streamID string
	turns    []transcript.Turn
}

func New(cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg: cfg,
		logger: logging.NewComponentLogger(slog.Default(), "bridge").With(
			slog.String("trace_id", cfg.TraceID),
		),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Run drives one call to completion. It dials the model leg, relays frames
// in both directions until either leg stops, then hands the transcript to
// the post-call hook. Both legs are closed before Run returns.
func (s *Session) Run(ctx context.Context, tel Leg, dial ModelDialer) error {
	s.state.Store(int32(StateConnecting))

	model, err := dial(ctx)
	if err != nil {
		s.logger.Error("model_leg_connect_failed",
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error(),
		)
		s.notifyFallback(ctx, tel)
		_ = tel.Close()
		s.state.Store(int32(StateClosed))
		return err
	}

	s.state.Store(int32(StateActive))
	s.logger.Info("call_session_active")

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Reads block on the sockets; closing both legs is what actually
	// unblocks a loop that missed the cancel.
	go func() {
		<-relayCtx.Done()
		_ = tel.Close()
		_ = model.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		s.telephonyLoop(relayCtx, tel, model)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		s.modelLoop(relayCtx, tel, model)
	}()
	wg.Wait()

	s.state.Store(int32(StateClosing))
	_ = model.Close()
	_ = tel.Close()

	s.mu.Lock()
	conversation := make([]transcript.Turn, len(s.turns))
	copy(conversation, s.turns)
	s.mu.Unlock()

	s.state.Store(int32(StateClosed))
	s.logger.Info("call_session_closed", "turns", len(conversation))

	if s.cfg.Hooks.OnCallEnd != nil {
		// The call context is gone by now; post-call work gets its own.
		s.cfg.Hooks.OnCallEnd(context.Background(), conversation)
	}
	return nil
}

// telephonyLoop relays caller audio upstream. It is the sole writer of
// streamID and the sole sender on the model leg after initialization.
func (s *Session) telephonyLoop(ctx context.Context, tel, model Leg) {
	for {
		frame, err := tel.Read()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Info("telephony_leg_closed", "error", err.Error())
			}
			return
		}
		ev, err := events.DecodeTelephony(frame)
		if err != nil {
			s.logger.Warn("telephony_frame_dropped",
				"reason_code", string(errorsx.Reason(err)),
				"error", err.Error(),
			)
			continue
		}
		switch ev.Type {
		case events.TypeStreamStarted:
			s.setStreamID(ev.StreamID)
			s.logger.Info("telephony_stream_started", "stream_id", ev.StreamID)
		case events.TypeAudioIn:
			pcm, err := audio.EncodeOutbound(ev.Audio, s.cfg.TelephonyFormat, s.cfg.ModelInputFormat)
			if err != nil {
				s.logger.Warn("inbound_frame_dropped",
					"reason_code", string(errorsx.Reason(err)),
					"error", err.Error(),
				)
				continue
			}
			if err := model.Send(events.AudioAppendMessage(pcm)); err != nil {
				s.logger.Error("model_leg_send_failed", "error", err.Error())
				return
			}
		case events.TypeStreamStopped:
			s.logger.Info("telephony_stream_stopped")
			return
		case events.TypeUnknown:
			s.logger.Debug("telephony_event_ignored", "event", ev.Raw)
		}
	}
}

// modelLoop relays assistant audio downstream, flushes buffered playback
// on barge-in, and collects finalized utterances from both speakers.
func (s *Session) modelLoop(ctx context.Context, tel, model Leg) {
	for {
		frame, err := model.Read()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Info("model_leg_closed", "error", err.Error())
			}
			return
		}
		ev, err := events.DecodeRealtime(frame)
		if err != nil {
			s.logger.Warn("model_frame_dropped",
				"reason_code", string(errorsx.Reason(err)),
				"error", err.Error(),
			)
			continue
		}
		switch ev.Type {
		case events.TypeAudioOut:
			streamID := s.getStreamID()
			if streamID == "" {
				continue
			}
			mulaw, err := audio.DecodeInbound(ev.Audio, s.cfg.ModelOutputFormat, s.cfg.TelephonyFormat)
			if err != nil {
				s.logger.Warn("outbound_frame_dropped",
					"reason_code", string(errorsx.Reason(err)),
					"error", err.Error(),
				)
				continue
			}
			if err := tel.Send(events.MediaMessage(streamID, mulaw)); err != nil {
				s.logger.Error("telephony_leg_send_failed", "error", err.Error())
				return
			}
		case events.TypeUserSpeechStarted:
			// Barge-in: flush queued assistant audio before anything else
			// reaches the caller.
			if streamID := s.getStreamID(); streamID != "" {
				if err := tel.Send(events.ClearMessage(streamID)); err != nil {
					s.logger.Error("telephony_leg_send_failed", "error", err.Error())
					return
				}
			}
			s.logger.Debug("user_speech_started")
		case events.TypeUserUtteranceFinal:
			s.appendTurn(transcript.SpeakerUser, ev.Text)
		case events.TypeAssistantUtteranceFinal:
			s.appendTurn(transcript.SpeakerAssistant, ev.Text)
		case events.TypeProviderError:
			s.logger.Error("model_provider_error", "detail", ev.Detail)
		case events.TypeUnknown:
			s.logger.Debug("model_event_ignored", "event", ev.Raw)
		}
	}
}

func (s *Session) notifyFallback(ctx context.Context, tel Leg) {
	if s.cfg.FallbackNotice == nil {
		return
	}
	// The call identifier arrives in the start frame; give the telephony
	// leg a short window to deliver it so the notice can be addressed.
	for i := 0; i < 4; i++ {
		frame, err := tel.Read()
		if err != nil {
			return
		}
		ev, err := events.DecodeTelephony(frame)
		if err != nil {
			continue
		}
		switch ev.Type {
		case events.TypeStreamStarted:
			if ev.CallID != "" {
				s.cfg.FallbackNotice(ctx, ev.CallID)
			}
			return
		case events.TypeStreamStopped:
			return
		}
	}
}

func (s *Session) setStreamID(id string) {
	s.mu.Lock()
	s.streamID = id
	s.mu.Unlock()
}

func (s *Session) getStreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamID
}

func (s *Session) appendTurn(role transcript.Speaker, content string) {
	if content == "" {
		return
	}
	s.mu.Lock()
	s.turns = append(s.turns, transcript.Turn{Role: role, Content: content})
	s.mu.Unlock()
	s.logger.Info("utterance_final", "role", string(role), "chars", len(content))
}
