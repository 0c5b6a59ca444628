package pbx

import (
	"testing"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, ev Event)
	}{
		{
			name:  "session start with dialed argument",
			frame: `{"type":"session-start","channel":{"id":"ch-1","caller":{"number":"79991234567"},"dialplan":{"exten":"s"}},"args":["100"]}`,
			check: func(t *testing.T, ev Event) {
				start, ok := ev.(SessionStart)
				if !ok {
					t.Fatalf("got %T, want SessionStart", ev)
				}
				if start.Channel.ID != "ch-1" {
					t.Errorf("channel id = %q", start.Channel.ID)
				}
				if got := start.CalledNumber(); got != "100" {
					t.Errorf("CalledNumber() = %q, want 100", got)
				}
			},
		},
		{
			name:  "session start falls back to dialplan exten",
			frame: `{"type":"session-start","channel":{"id":"ch-2","caller":{"number":"1001"},"dialplan":{"exten":"102"}}}`,
			check: func(t *testing.T, ev Event) {
				if got := ev.(SessionStart).CalledNumber(); got != "102" {
					t.Errorf("CalledNumber() = %q, want 102", got)
				}
			},
		},
		{
			name:  "channel state changed",
			frame: `{"type":"channel-state-changed","channel":{"id":"ch-3","caller":{"number":"1001"},"state":"Ringing"}}`,
			check: func(t *testing.T, ev Event) {
				changed := ev.(ChannelStateChanged)
				if changed.Channel.State != "Ringing" {
					t.Errorf("state = %q", changed.Channel.State)
				}
			},
		},
		{
			name:  "queue caller joined",
			frame: `{"type":"queue-caller-joined","caller_number":"79991234567","queue":"support","unique_id":"uid-9","position":3}`,
			check: func(t *testing.T, ev Event) {
				joined := ev.(QueueCallerJoined)
				if joined.Queue != "support" || joined.UniqueID != "uid-9" || joined.Position != 3 {
					t.Errorf("unexpected decode: %+v", joined)
				}
			},
		},
		{
			name:  "queue caller left with reason",
			frame: `{"type":"queue-caller-left","unique_id":"uid-9","queue":"support","reason":"timeout"}`,
			check: func(t *testing.T, ev Event) {
				if got := ev.(QueueCallerLeft).Reason; got != "timeout" {
					t.Errorf("reason = %q", got)
				}
			},
		},
		{
			name:  "channel entered bridge",
			frame: `{"type":"channel-entered-bridge","channel":{"id":"ch-4","caller":{"number":"1001"}},"bridge":{"id":"br-1"}}`,
			check: func(t *testing.T, ev Event) {
				entered := ev.(ChannelEnteredBridge)
				if entered.Bridge.ID != "br-1" {
					t.Errorf("bridge id = %q", entered.Bridge.ID)
				}
			},
		},
		{
			name:  "unknown tag is ignored, not an error",
			frame: `{"type":"peer-status-changed","peer":"PJSIP/1001"}`,
			check: func(t *testing.T, ev Event) {
				ignored, ok := ev.(IgnoredEvent)
				if !ok {
					t.Fatalf("got %T, want IgnoredEvent", ev)
				}
				if ignored.EventType() != "peer-status-changed" {
					t.Errorf("type = %q", ignored.EventType())
				}
			},
		},
		{
			name:  "missing tag is ignored",
			frame: `{"channel":{"id":"ch-5"}}`,
			check: func(t *testing.T, ev Event) {
				if _, ok := ev.(IgnoredEvent); !ok {
					t.Fatalf("got %T, want IgnoredEvent", ev)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tc.frame))
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			tc.check(t, ev)
		})
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for truncated frame")
	}
	if _, err := DecodeEvent([]byte(`{"type":"queue-caller-joined","position":"third"}`)); err == nil {
		t.Fatal("expected error for mistyped field")
	}
}
