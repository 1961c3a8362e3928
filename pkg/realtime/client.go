// Package realtime maintains the websocket session to the speech-model
// provider's realtime endpoint.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hanavoice/hana/pkg/errorsx"
	"github.com/hanavoice/hana/pkg/events"
	"github.com/hanavoice/hana/pkg/logging"
)

const DefaultURL = "wss://api.openai.com/v1/realtime?model=gpt-4o-mini-realtime-preview"

type Config struct {
	URL         string
	APIKey      string
	DialTimeout time.Duration
	Session     events.SessionConfig
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	return c
}

// Client is one live realtime session. Read is used by exactly one loop;
// Send may be called from the init path and the relay loop, so writes are
// serialized.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
}

// Dial opens the model leg and sends the session initialization message.
// Failure here is fatal for the call.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, errorsx.Wrap(errors.New("missing realtime api key"), errorsx.ReasonRealtimeConnect)
	}
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	conn, resp, err := dialer.DialContext(ctx, cfg.URL, headers)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, errorsx.Wrap(err, errorsx.ReasonRealtimeConnect)
	}
	c := &Client{
		conn:   conn,
		logger: logging.NewComponentLogger(slog.Default(), "realtime"),
	}
	if err := c.Send(events.SessionUpdateMessage(cfg.Session)); err != nil {
		_ = conn.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonRealtimeConnect)
	}
	c.logger.Info("realtime_session_initialized",
		"voice", cfg.Session.Voice,
		"input_format", cfg.Session.InputAudioFormat,
		"output_format", cfg.Session.OutputAudioFormat,
	)
	return c, nil
}

// Read blocks until the next model frame arrives.
func (c *Client) Read() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

// Send writes one frame to the model leg.
func (c *Client) Send(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonRealtimeSend)
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
