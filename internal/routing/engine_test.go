package routing

import (
	"context"
	"testing"
	"time"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/operators"
)

// businessNoon is a Monday at 12:00 UTC.
var businessNoon = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

type stubAvailability struct {
	ops       map[string]operators.Operator
	available map[string]bool
	inQueue   map[string]int
	wait      time.Duration
}

func (s stubAvailability) OperatorByExtension(ext string) (operators.Operator, bool) {
	op, ok := s.ops[ext]
	return op, ok
}

func (s stubAvailability) IsAvailable(ctx context.Context, op operators.Operator) bool {
	return s.available[op.ID]
}

func (s stubAvailability) AvailableInQueue(ctx context.Context, queue string) int {
	return s.inQueue[queue]
}

func (s stubAvailability) EstimatedWait(ctx context.Context, queue string) time.Duration {
	return s.wait
}

func newTestEngine(avail Availability, at time.Time) *Engine {
	e := NewEngine(DefaultTables(), avail)
	e.Now = func() time.Time { return at }
	return e
}

func TestRoute_AfterHoursBeatsEverything(t *testing.T) {
	avail := stubAvailability{
		ops:       map[string]operators.Operator{"1001": {ID: "op1", Extension: "1001"}},
		available: map[string]bool{"op1": true},
		inQueue:   map[string]int{"support": 3},
	}

	times := []time.Time{
		time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC), // Monday evening
		time.Date(2025, 6, 2, 8, 59, 0, 0, time.UTC), // Monday before opening
		time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC), // Saturday noon
		time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC), // Sunday noon
	}
	for _, at := range times {
		e := newTestEngine(avail, at)
		d := e.Route(context.Background(), Input{CallerNumber: "5551234", CalledNumber: "1001"})
		if d.Action != ActionPlayMenu || d.MenuID != MenuAfterHours {
			t.Fatalf("at %v: got %+v, want after-hours menu", at, d)
		}
	}
}

func TestRoute_DirectDialWhenOperatorOnline(t *testing.T) {
	avail := stubAvailability{
		ops:       map[string]operators.Operator{"1001": {ID: "op1", Extension: "1001"}},
		available: map[string]bool{"op1": true},
	}
	e := newTestEngine(avail, businessNoon)

	d := e.Route(context.Background(), Input{CallerNumber: "5551234", CalledNumber: "1001", ChannelID: "c1"})
	if d.Action != ActionDialDirect {
		t.Fatalf("got %+v, want dial_direct", d)
	}
	if d.TargetExtension != "1001" || d.OperatorID != "op1" {
		t.Fatalf("unexpected target: %+v", d)
	}
	if d.FallbackQueue == "" {
		t.Fatalf("direct dial must carry a fallback queue")
	}
}

func TestRoute_UnavailableOperatorFallsBackToQueue(t *testing.T) {
	avail := stubAvailability{
		ops:       map[string]operators.Operator{"1001": {ID: "op1", Extension: "1001"}},
		available: map[string]bool{}, // op1 at capacity or paused
		inQueue:   map[string]int{"support": 1},
	}
	e := newTestEngine(avail, businessNoon)

	d := e.Route(context.Background(), Input{CalledNumber: "1001"})
	if d.Action != ActionRouteToQueue || d.QueueName != "support" {
		t.Fatalf("got %+v, want queue-route to support", d)
	}
	if d.Reason != "operator_unavailable" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestRoute_UnknownExtensionRejectsWithFallback(t *testing.T) {
	e := newTestEngine(stubAvailability{}, businessNoon)

	d := e.Route(context.Background(), Input{CalledNumber: "1999"})
	if d.Action != ActionReject {
		t.Fatalf("got %+v, want reject", d)
	}
	if d.FallbackQueue != "support" {
		t.Fatalf("expected fallback queue, got %q", d.FallbackQueue)
	}
}

func TestRoute_QueueNumberMapsToQueue(t *testing.T) {
	avail := stubAvailability{inQueue: map[string]int{"sales": 2}}
	e := newTestEngine(avail, businessNoon)

	d := e.Route(context.Background(), Input{CalledNumber: "101"})
	if d.Action != ActionRouteToQueue || d.QueueName != "sales" {
		t.Fatalf("got %+v, want queue-route to sales", d)
	}
	if d.QueueStrategy != StrategyFewestCalls {
		t.Fatalf("expected sales strategy fewestcalls, got %q", d.QueueStrategy)
	}
}

func TestRoute_EmptyQueueGetsNoOperatorsMenu(t *testing.T) {
	avail := stubAvailability{inQueue: map[string]int{}, wait: 3 * time.Minute}
	e := newTestEngine(avail, businessNoon)

	d := e.Route(context.Background(), Input{CalledNumber: "100"})
	if d.Action != ActionPlayMenu || d.MenuID != MenuNoOperators {
		t.Fatalf("got %+v, want no-operators menu", d)
	}
	if d.EstimatedWait != 3*time.Minute {
		t.Fatalf("expected estimated wait, got %v", d.EstimatedWait)
	}
}

func TestRoute_ServiceNumbersPlayMenus(t *testing.T) {
	e := newTestEngine(stubAvailability{}, businessNoon)

	tests := []struct {
		number string
		menu   string
	}{
		{"500", MenuMain},
		{"501", MenuVoicemail},
		{"502", MenuCallback},
	}
	for _, tt := range tests {
		d := e.Route(context.Background(), Input{CalledNumber: tt.number})
		if d.Action != ActionPlayMenu || d.MenuID != tt.menu {
			t.Errorf("Route(%q) = %+v, want menu %q", tt.number, d, tt.menu)
		}
	}
}

func TestRoute_UnclassifiedGoesToDefaultQueue(t *testing.T) {
	avail := stubAvailability{inQueue: map[string]int{"support": 1}}
	e := newTestEngine(avail, businessNoon)

	d := e.Route(context.Background(), Input{CalledNumber: "874993"})
	if d.Action != ActionRouteToQueue || d.QueueName != "support" {
		t.Fatalf("got %+v, want default queue route", d)
	}
	if d.Reason != "default_routing" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestRoute_ExtensionWinsOverQueueTableWhenOperatorExists(t *testing.T) {
	cfg := DefaultTables()
	cfg.QueueNumbers["2000"] = "vip" // same number as a live extension

	avail := stubAvailability{
		ops:       map[string]operators.Operator{"2000": {ID: "op2", Extension: "2000"}},
		available: map[string]bool{"op2": true},
		inQueue:   map[string]int{"vip": 5},
	}
	e := NewEngine(cfg, avail)
	e.Now = func() time.Time { return businessNoon }

	d := e.Route(context.Background(), Input{CalledNumber: "2000"})
	if d.Action != ActionDialDirect || d.OperatorID != "op2" {
		t.Fatalf("got %+v, want direct dial to op2", d)
	}
}

func TestRoute_ExtensionPatternFallsThroughToQueueTable(t *testing.T) {
	cfg := DefaultTables()
	cfg.QueueNumbers["2000"] = "vip"

	avail := stubAvailability{inQueue: map[string]int{"vip": 1}}
	e := NewEngine(cfg, avail)
	e.Now = func() time.Time { return businessNoon }

	// No operator owns 2000, so the queue table applies.
	d := e.Route(context.Background(), Input{CalledNumber: "2000"})
	if d.Action != ActionRouteToQueue || d.QueueName != "vip" {
		t.Fatalf("got %+v, want queue-route to vip", d)
	}
}

func TestRoute_IsTotal(t *testing.T) {
	avail := stubAvailability{inQueue: map[string]int{"support": 1}}
	e := newTestEngine(avail, businessNoon)

	numbers := []string{"", "1001", "100", "500", "xyz", "99", "30000", "0000", "9999"}
	for _, n := range numbers {
		d := e.Route(context.Background(), Input{CalledNumber: n})
		switch d.Action {
		case ActionDialDirect, ActionRouteToQueue, ActionPlayMenu, ActionReject:
		default:
			t.Fatalf("Route(%q) produced no decision: %+v", n, d)
		}
	}
}

func TestIsDirectExtension(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1001", true},
		{"0001", true},
		{"2999", true},
		{"3001", false}, // outside reserved prefix range
		{"100", false},  // too short
		{"10011", false},
		{"1a01", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isDirectExtension(tt.in); got != tt.want {
			t.Errorf("isDirectExtension(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
