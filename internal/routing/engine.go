package routing

import (
	"context"
	"time"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/operators"
)

// Availability is the point-in-time operator/queue view the engine consults.
// operators.Directory satisfies it.
type Availability interface {
	OperatorByExtension(ext string) (operators.Operator, bool)
	IsAvailable(ctx context.Context, op operators.Operator) bool
	AvailableInQueue(ctx context.Context, queue string) int
	EstimatedWait(ctx context.Context, queue string) time.Duration
}

// Config carries the static routing tables and business-hours window.
type Config struct {
	// Business hours apply Monday..Friday, [StartHour, EndHour).
	BusinessStartHour int
	BusinessEndHour   int

	DefaultQueue  string
	FallbackQueue string

	// QueueNumbers maps dialed numbers to queue names.
	QueueNumbers map[string]string

	// ServiceMenus maps dialed service numbers to menu ids.
	ServiceMenus map[string]string

	// QueueStrategies maps queue names to distribution strategies.
	QueueStrategies map[string]string
	DefaultStrategy string
}

// DefaultTables returns the stock number plan: three-digit queue numbers,
// five-hundred-range service numbers and per-queue strategies.
func DefaultTables() Config {
	return Config{
		BusinessStartHour: 9,
		BusinessEndHour:   18,
		DefaultQueue:      "support",
		FallbackQueue:     "support",
		QueueNumbers: map[string]string{
			"100": "support",
			"101": "sales",
			"102": "technical",
			"200": "vip",
		},
		ServiceMenus: map[string]string{
			"500": MenuMain,
			"501": MenuVoicemail,
			"502": MenuCallback,
		},
		QueueStrategies: map[string]string{
			"support":   StrategyLeastRecent,
			"sales":     StrategyFewestCalls,
			"technical": StrategyLinear,
			"vip":       StrategyRingAll,
		},
		DefaultStrategy: StrategyLeastRecent,
	}
}

// Input identifies one inbound call to route.
type Input struct {
	CallerNumber string
	CalledNumber string
	ChannelID    string
}

// Engine turns an inbound call plus an availability snapshot into exactly
// one Decision. It is pure apart from reading the snapshot: no side effects,
// safe for concurrent use.
type Engine struct {
	cfg   Config
	avail Availability

	Now func() time.Time
}

func NewEngine(cfg Config, avail Availability) *Engine {
	if cfg.DefaultQueue == "" {
		cfg.DefaultQueue = "support"
	}
	if cfg.FallbackQueue == "" {
		cfg.FallbackQueue = cfg.DefaultQueue
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = StrategyLeastRecent
	}
	return &Engine{cfg: cfg, avail: avail, Now: time.Now}
}

// Route decides how to handle an inbound call. The checks run in a fixed
// order: business hours, direct extension, queue number, service number,
// unclassified. A number matching the extension pattern falls through to
// the queue-number table only when no operator owns that extension.
func (e *Engine) Route(ctx context.Context, in Input) Decision {
	now := e.Now()

	if !e.isBusinessHours(now) {
		return Decision{Action: ActionPlayMenu, MenuID: MenuAfterHours, Reason: "after_hours"}
	}

	if isDirectExtension(in.CalledNumber) {
		op, ok := e.avail.OperatorByExtension(in.CalledNumber)
		if ok {
			if !e.avail.IsAvailable(ctx, op) {
				return Decision{
					Action:        ActionRouteToQueue,
					QueueName:     e.cfg.FallbackQueue,
					QueueStrategy: e.strategyFor(e.cfg.FallbackQueue),
					Reason:        "operator_unavailable",
				}
			}
			return Decision{
				Action:          ActionDialDirect,
				TargetExtension: in.CalledNumber,
				OperatorID:      op.ID,
				FallbackQueue:   e.cfg.FallbackQueue,
				Reason:          "direct_extension",
			}
		}
		// No operator owns the extension; the number may still be a queue
		// or service number, checked below.
		if !e.isKnownNumber(in.CalledNumber) {
			return Decision{
				Action:        ActionReject,
				FallbackQueue: e.cfg.FallbackQueue,
				Reason:        "operator_not_found",
			}
		}
	}

	if queue, ok := e.cfg.QueueNumbers[in.CalledNumber]; ok {
		return e.routeToQueue(ctx, queue, "queue_number")
	}

	if menu, ok := e.cfg.ServiceMenus[in.CalledNumber]; ok {
		return Decision{Action: ActionPlayMenu, MenuID: menu, Reason: "service_number"}
	}

	return e.routeToQueue(ctx, e.cfg.DefaultQueue, "default_routing")
}

func (e *Engine) routeToQueue(ctx context.Context, queue, reason string) Decision {
	if e.avail.AvailableInQueue(ctx, queue) == 0 {
		return Decision{
			Action:        ActionPlayMenu,
			MenuID:        MenuNoOperators,
			EstimatedWait: e.avail.EstimatedWait(ctx, queue),
			FallbackQueue: queue,
			Reason:        "no_operators",
		}
	}
	return Decision{
		Action:        ActionRouteToQueue,
		QueueName:     queue,
		QueueStrategy: e.strategyFor(queue),
		Reason:        reason,
	}
}

func (e *Engine) strategyFor(queue string) string {
	if s, ok := e.cfg.QueueStrategies[queue]; ok {
		return s
	}
	return e.cfg.DefaultStrategy
}

func (e *Engine) isBusinessHours(now time.Time) bool {
	wd := now.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	h := now.Hour()
	return h >= e.cfg.BusinessStartHour && h < e.cfg.BusinessEndHour
}

func (e *Engine) isKnownNumber(number string) bool {
	if _, ok := e.cfg.QueueNumbers[number]; ok {
		return true
	}
	_, ok := e.cfg.ServiceMenus[number]
	return ok
}

// isDirectExtension matches four-digit numbers in the reserved 0/1/2 prefix
// range used for operator extensions.
func isDirectExtension(number string) bool {
	if len(number) != 4 {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	switch number[0] {
	case '0', '1', '2':
		return true
	default:
		return false
	}
}
