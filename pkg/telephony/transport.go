// Package telephony terminates the provider's media-stream websocket and
// the inbound-call webhook, handing each accepted stream to a call handler.
package telephony

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hanavoice/hana/pkg/errorsx"
	twilioclient "github.com/twilio/twilio-go/client"
)

type Config struct {
	ServerAddr       string `mapstructure:"server_addr"`
	PublicURL        string `mapstructure:"public_url"`
	AuthToken        string `mapstructure:"auth_token"`
	AccountSID       string `mapstructure:"account_sid"`
	VoicePath        string `mapstructure:"voice_path"`
	WebsocketPath    string `mapstructure:"ws_path"`
	VoiceGreeting    string `mapstructure:"voice_greeting"`
	GreetingVoice    string `mapstructure:"greeting_voice"`
	GreetingLanguage string `mapstructure:"greeting_language"`
	FallbackNotice   string `mapstructure:"fallback_notice"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8082"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/incoming"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/media-stream"
	}
	if c.GreetingVoice == "" {
		c.GreetingVoice = "alice"
	}
	if c.GreetingLanguage == "" {
		c.GreetingLanguage = "ko-KR"
	}
	if c.FallbackNotice == "" {
		c.FallbackNotice = "죄송해요, 지금은 통화 연결이 어려워요. 잠시 후 다시 걸어주세요."
	}
	return c
}

// CallHandler runs one accepted media stream to completion. The leg is
// closed when the handler returns.
type CallHandler func(ctx context.Context, leg *StreamLeg, traceID string)

type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	handler  CallHandler
	logger   *slog.Logger

	draining atomic.Bool
}

func New(cfg Config, handler CallHandler) *Transport {
	return &Transport{
		cfg: cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		handler: handler,
		logger:  slog.Default().With(slog.String("component", "telephony")),
	}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.VoicePath, t.handleIncoming)
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("telephony_server_error", "error", err.Error())
		}
	}()
	t.logger.Info("telephony_server_started",
		"addr", t.cfg.ServerAddr,
		"voice_path", t.cfg.VoicePath,
		"ws_path", t.cfg.WebsocketPath,
	)
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		return t.server.Close()
	}
	return nil
}

// Drain satisfies the runner's drainer hook.
func (t *Transport) Drain() error { return t.Stop() }

// handleIncoming answers the provider's inbound-call webhook with call
// control markup that opens the media stream back at this server.
func (t *Transport) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateSignature(r) {
		t.logger.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	wsURL := t.websocketURL(r)
	w.Header().Set("Content-Type", "text/xml")
	if wsURL == "" {
		t.logger.Error("no_valid_stream_host", "public_url", t.cfg.PublicURL, "host", r.Host)
		_, _ = w.Write([]byte(`<Response>` + t.sayElement("설정 오류입니다.") + `<Hangup/></Response>`))
		return
	}
	var twiml strings.Builder
	twiml.WriteString(`<Response>`)
	if greeting := strings.TrimSpace(t.cfg.VoiceGreeting); greeting != "" {
		twiml.WriteString(t.sayElement(greeting))
	}
	twiml.WriteString(`<Connect><Stream url="` + wsURL + `" track="inbound_track"/></Connect></Response>`)
	t.logger.Info("incoming_call_accepted", "stream_url", wsURL)
	_, _ = w.Write([]byte(twiml.String()))
}

func (t *Transport) sayElement(text string) string {
	return sayElement(t.cfg.GreetingVoice, t.cfg.GreetingLanguage, text)
}

func sayElement(voice, language, text string) string {
	return `<Say voice="` + xmlEscape(voice) + `" language="` + xmlEscape(language) + `">` + xmlEscape(text) + `</Say>`
}

// ServeHTTP accepts one media-stream websocket and drives the call
// handler for its duration.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	leg := newStreamLeg(conn)
	traceID := uuid.NewString()
	t.logger.Info("media_stream_accepted", "trace_id", traceID)
	if t.handler != nil {
		t.handler(r.Context(), leg, traceID)
	}
	_ = leg.Close()
}

func (t *Transport) websocketURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		return "wss://" + normalizePublicURL(t.cfg.PublicURL) + t.cfg.WebsocketPath
	}
	if r.Host == "" {
		return ""
	}
	return "wss://" + r.Host + t.cfg.WebsocketPath
}

func (t *Transport) validateSignature(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	validator := twilioclient.NewRequestValidator(t.cfg.AuthToken)
	return validator.ValidateBody(t.requestURL(r), body, signature)
}

func (t *Transport) requestURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		base := strings.TrimRight(t.cfg.PublicURL, "/")
		return base + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// StreamLeg is one live media-stream connection. Reads come straight off
// the socket; sends go through a buffered queue drained by a single writer
// goroutine, so send order is preserved without a caller-side lock.
type StreamLeg struct {
	conn    *websocket.Conn
	sendCh  chan []byte
	done    chan struct{}
	drained chan struct{}
	closed  atomic.Bool
}

func newStreamLeg(conn *websocket.Conn) *StreamLeg {
	leg := &StreamLeg{
		conn:    conn,
		sendCh:  make(chan []byte, 512),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	go leg.writeLoop()
	return leg
}

// Read blocks until the next inbound wire frame.
func (l *StreamLeg) Read() ([]byte, error) {
	_, msg, err := l.conn.ReadMessage()
	return msg, err
}

// Send enqueues one outbound frame. A full queue drops the frame rather
// than stalling the relay. The queue channel is never closed, so Send
// racing a concurrent Close returns an error instead of panicking.
func (l *StreamLeg) Send(msg []byte) error {
	if l.closed.Load() {
		return errorsx.Wrap(errors.New("stream leg closed"), errorsx.ReasonTransportSend)
	}
	select {
	case l.sendCh <- msg:
	default:
	}
	return nil
}

// Close stops the writer, giving it a bounded window to flush already
// queued frames, then closes the connection.
func (l *StreamLeg) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		close(l.done)
		select {
		case <-l.drained:
		case <-time.After(time.Second):
		}
	}
	return l.conn.Close()
}

func (l *StreamLeg) writeLoop() {
	defer close(l.drained)
	for {
		select {
		case msg := <-l.sendCh:
			if err := l.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-l.done:
			for {
				select {
				case msg := <-l.sendCh:
					if err := l.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	v = strings.TrimPrefix(v, "wss://")
	v = strings.TrimPrefix(v, "ws://")
	return strings.TrimRight(v, "/")
}

