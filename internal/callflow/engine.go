package callflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/calls"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/notify"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/operators"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/pbx"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/routing"
)

// Notification kinds pushed through the fan-out hub.
const (
	NotifyIncomingCall   = "incoming-call"
	NotifyCallAnswered   = "call-answered"
	NotifyCallEnded      = "call-ended"
	NotifyCallMissed     = "call-missed"
	NotifyCallAbandoned  = "call-abandoned"
	NotifyQueueJoin      = "queue-caller-join"
	NotifyOperatorStatus = "operator-status-change"
)

// Control is the slice of the switch client the call flow acts through.
type Control interface {
	Answer(ctx context.Context, channelID string) error
	Hangup(ctx context.Context, channelID string) error
	Originate(ctx context.Context, req pbx.OriginateRequest) error
	RedirectToQueue(ctx context.Context, channelID, queue string) error
	PlayAnnouncement(ctx context.Context, channelID, soundID string) error
}

// session is the in-memory state of one tracked channel. It exists from
// the first event naming the channel until its terminal event; its absence
// afterwards is the idempotence guard against duplicate terminal events.
type session struct {
	channelID string
	callID    string

	caller string
	called string

	status     calls.CallStatus
	queue      string
	operatorID string

	start     time.Time
	answer    *time.Time
	lastEvent time.Time
}

// queueEntry tracks one caller waiting in a queue, keyed by the switch's
// unique id for the waiting channel.
type queueEntry struct {
	uniqueID string
	callID   string
	queue    string
	caller   string
	joined   time.Time
	position int
}

// Engine is the authoritative call state machine. It consumes switch
// events in stream order, keeps one session per live channel, executes
// routing decisions through the control client, persists call records and
// publishes notifications as side effects.
//
// Persistence failures are logged and swallowed: the in-memory session
// stays authoritative for the rest of its lifetime.
type Engine struct {
	store    calls.Store
	router   *routing.Engine
	dir      *operators.Directory
	control  Control
	notifier notify.Notifier
	log      *slog.Logger

	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	waiting  map[string]*queueEntry
}

type Config struct {
	// IdleTimeout force-finalizes sessions with no events for this long,
	// covering terminal events lost across a stream reconnect.
	IdleTimeout time.Duration
}

func NewEngine(cfg Config, store calls.Store, router *routing.Engine, dir *operators.Directory, control Control, notifier notify.Notifier, log *slog.Logger) *Engine {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Hour
	}
	return &Engine{
		store:       store,
		router:      router,
		dir:         dir,
		control:     control,
		notifier:    notifier,
		log:         log,
		idleTimeout: cfg.IdleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*session),
		waiting:     make(map[string]*queueEntry),
	}
}

// Handle implements pbx.Handler. Events are processed strictly in arrival
// order; the mutex only defends against the idle sweeper and snapshot
// readers.
func (e *Engine) Handle(ctx context.Context, ev pbx.Event) {
	switch ev := ev.(type) {
	case pbx.SessionStart:
		e.handleSessionStart(ctx, ev)
	case pbx.ChannelStateChanged:
		e.handleStateChanged(ctx, ev)
	case pbx.SessionEnd:
		e.handleTerminal(ctx, ev.Channel.ID, "session-end")
	case pbx.ChannelDestroyed:
		e.handleTerminal(ctx, ev.Channel.ID, "channel-destroyed")
	case pbx.QueueCallerJoined:
		e.handleQueueJoined(ctx, ev)
	case pbx.QueueCallerLeft:
		e.handleQueueLeft(ctx, ev)
	case pbx.QueueMemberRinging:
		e.handleMemberRinging(ctx, ev)
	case pbx.QueueMemberPaused:
		e.handleMemberPause(ctx, ev.Interface, operators.StatusPaused)
	case pbx.QueueMemberUnpaused:
		e.handleMemberPause(ctx, ev.Interface, operators.StatusAvailable)
	case pbx.ChannelEnteredBridge:
		e.handleBridgeEntered(ctx, ev)
	case pbx.ChannelLeftBridge:
		e.handleBridgeLeft(ctx, ev)
	case pbx.BridgeCreated:
		e.log.Debug("bridge created", "bridge_id", ev.Bridge.ID)
	default:
		e.log.Debug("ignoring event", "type", ev.EventType())
	}
}

// SessionView is a point-in-time copy of one live session.
type SessionView struct {
	ChannelID    string           `json:"channel_id"`
	CallID       string           `json:"call_id"`
	CallerNumber string           `json:"caller_number"`
	CalledNumber string           `json:"called_number,omitempty"`
	Status       calls.CallStatus `json:"status"`
	QueueName    string           `json:"queue_name,omitempty"`
	OperatorID   string           `json:"operator_id,omitempty"`
	StartTime    time.Time        `json:"start_time"`
	AnswerTime   *time.Time       `json:"answer_time,omitempty"`
}

// Snapshot copies the live session set for dashboards.
func (e *Engine) Snapshot() []SessionView {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]SessionView, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, SessionView{
			ChannelID:    s.channelID,
			CallID:       s.callID,
			CallerNumber: s.caller,
			CalledNumber: s.called,
			Status:       s.status,
			QueueName:    s.queue,
			OperatorID:   s.operatorID,
			StartTime:    s.start,
			AnswerTime:   s.answer,
		})
	}
	return out
}

// SweepIdle force-finalizes sessions silent beyond the idle timeout and
// returns how many it closed. It covers channels whose terminal event was
// lost while the stream was down.
func (e *Engine) SweepIdle(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var stale []*session
	for _, s := range e.sessions {
		if now.Sub(s.lastEvent) >= e.idleTimeout {
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		e.log.Warn("closing idle session", "channel_id", s.channelID, "last_event", s.lastEvent)
		e.finalize(ctx, s, now)
	}
	return len(stale)
}

// RunIdleSweeper periodically sweeps idle sessions until ctx is cancelled.
func (e *Engine) RunIdleSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.SweepIdle(ctx); n > 0 {
				e.log.Info("idle sweep closed sessions", "count", n)
			}
		}
	}
}
