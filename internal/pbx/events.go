package pbx

import (
	"encoding/json"
	"fmt"
)

// Channel is the switch's view of one call leg, embedded in most events.
type Channel struct {
	ID       string   `json:"id"`
	Caller   Caller   `json:"caller"`
	State    string   `json:"state,omitempty"`
	Dialplan Dialplan `json:"dialplan,omitempty"`
}

type Caller struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type Dialplan struct {
	Exten string `json:"exten,omitempty"`
}

type Bridge struct {
	ID string `json:"id"`
}

// Event is one decoded frame from the switch's event subscription.
// Exactly one concrete type exists per recognized wire tag; everything
// else decodes to IgnoredEvent.
type Event interface {
	EventType() string
}

type SessionStart struct {
	Channel Channel  `json:"channel"`
	Args    []string `json:"args,omitempty"`
}

// CalledNumber is the dialed destination: the first application argument
// when present, the dialplan extension otherwise.
func (e SessionStart) CalledNumber() string {
	if len(e.Args) > 0 && e.Args[0] != "" {
		return e.Args[0]
	}
	return e.Channel.Dialplan.Exten
}

type SessionEnd struct {
	Channel Channel `json:"channel"`
}

type ChannelStateChanged struct {
	Channel Channel `json:"channel"`
}

type ChannelDestroyed struct {
	Channel Channel `json:"channel"`
}

type QueueCallerJoined struct {
	CallerNumber string `json:"caller_number"`
	Queue        string `json:"queue"`
	UniqueID     string `json:"unique_id"`
	Position     int    `json:"position"`
}

type QueueCallerLeft struct {
	UniqueID string `json:"unique_id"`
	Queue    string `json:"queue"`

	// Reason is one of "transfer", "timeout", "hangup".
	Reason string `json:"reason"`
}

type QueueMemberRinging struct {
	Interface    string `json:"interface"`
	Queue        string `json:"queue"`
	CallerNumber string `json:"caller_number"`
}

type QueueMemberPaused struct {
	Interface string `json:"interface"`
	Reason    string `json:"reason,omitempty"`
}

type QueueMemberUnpaused struct {
	Interface string `json:"interface"`
}

type BridgeCreated struct {
	Bridge Bridge `json:"bridge"`
}

type ChannelEnteredBridge struct {
	Channel Channel `json:"channel"`
	Bridge  Bridge  `json:"bridge"`
}

type ChannelLeftBridge struct {
	Channel Channel `json:"channel"`
	Bridge  Bridge  `json:"bridge"`
}

// IgnoredEvent carries the tag of a recognized-but-unhandled or unknown
// event type. Unknown tags are not errors.
type IgnoredEvent struct {
	Type string
}

func (SessionStart) EventType() string         { return "session-start" }
func (SessionEnd) EventType() string           { return "session-end" }
func (ChannelStateChanged) EventType() string  { return "channel-state-changed" }
func (ChannelDestroyed) EventType() string     { return "channel-destroyed" }
func (QueueCallerJoined) EventType() string    { return "queue-caller-joined" }
func (QueueCallerLeft) EventType() string      { return "queue-caller-left" }
func (QueueMemberRinging) EventType() string   { return "queue-member-ringing" }
func (QueueMemberPaused) EventType() string    { return "queue-member-paused" }
func (QueueMemberUnpaused) EventType() string  { return "queue-member-unpaused" }
func (BridgeCreated) EventType() string        { return "bridge-created" }
func (ChannelEnteredBridge) EventType() string { return "channel-entered-bridge" }
func (ChannelLeftBridge) EventType() string    { return "channel-left-bridge" }
func (e IgnoredEvent) EventType() string       { return e.Type }

// DecodeEvent parses one wire frame into its typed event. A missing or
// unrecognized type tag yields IgnoredEvent; malformed JSON is an error.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	switch envelope.Type {
	case "session-start":
		return decodeAs[SessionStart](data)
	case "session-end":
		return decodeAs[SessionEnd](data)
	case "channel-state-changed":
		return decodeAs[ChannelStateChanged](data)
	case "channel-destroyed":
		return decodeAs[ChannelDestroyed](data)
	case "queue-caller-joined":
		return decodeAs[QueueCallerJoined](data)
	case "queue-caller-left":
		return decodeAs[QueueCallerLeft](data)
	case "queue-member-ringing":
		return decodeAs[QueueMemberRinging](data)
	case "queue-member-paused":
		return decodeAs[QueueMemberPaused](data)
	case "queue-member-unpaused":
		return decodeAs[QueueMemberUnpaused](data)
	case "bridge-created":
		return decodeAs[BridgeCreated](data)
	case "channel-entered-bridge":
		return decodeAs[ChannelEnteredBridge](data)
	case "channel-left-bridge":
		return decodeAs[ChannelLeftBridge](data)
	default:
		return IgnoredEvent{Type: envelope.Type}, nil
	}
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.EventType(), err)
	}
	return ev, nil
}
