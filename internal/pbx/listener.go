package pbx

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gorilla/websocket"
)

// Handler receives decoded switch events in the order they arrived on the
// stream. Handle must not block for long; slow handlers delay every
// subsequent event.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event)

func (f HandlerFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }

type ListenerConfig struct {
	// EventsURL is the websocket endpoint, without credentials.
	EventsURL string
	Username  string
	Password  string
	AppName   string
}

// Listener consumes the switch's event stream over a websocket and feeds
// each decoded event to a Handler. One Listener serves one connection; the
// caller owns the reconnect policy.
type Listener struct {
	cfg     ListenerConfig
	handler Handler
	log     *slog.Logger

	dial func(ctx context.Context, rawURL string) (*websocket.Conn, error)
}

func NewListener(cfg ListenerConfig, handler Handler, log *slog.Logger) *Listener {
	return &Listener{
		cfg:     cfg,
		handler: handler,
		log:     log,
		dial: func(ctx context.Context, rawURL string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
			return conn, err
		},
	}
}

// Run connects and pumps events until the context is cancelled or the
// connection fails. It always returns a non-nil error describing why the
// stream ended; callers decide whether to reconnect.
func (l *Listener) Run(ctx context.Context) error {
	conn, err := l.dial(ctx, l.streamURL())
	if err != nil {
		return fmt.Errorf("pbx: connect event stream: %w", err)
	}
	defer conn.Close()

	l.log.Info("event stream connected", "app", l.cfg.AppName)

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("pbx: read event stream: %w", err)
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			// A single malformed frame must not tear down the stream.
			l.log.Warn("dropping malformed event frame", "error", err)
			continue
		}
		if ignored, ok := ev.(IgnoredEvent); ok {
			l.log.Debug("ignoring event", "type", ignored.Type)
			continue
		}

		l.handler.Handle(ctx, ev)
	}
}

func (l *Listener) streamURL() string {
	q := url.Values{}
	q.Set("api_key", l.cfg.Username+":"+l.cfg.Password)
	q.Set("app", l.cfg.AppName)
	return l.cfg.EventsURL + "?" + q.Encode()
}
