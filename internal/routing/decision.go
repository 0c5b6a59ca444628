package routing

import "time"

// Decision is the output of the routing engine for one inbound call.
//
// It must contain only what the call-flow layer needs to act on the switch:
// no storage handles, no live operator state.
type Decision struct {
	Action Action `json:"action"`

	// TargetExtension and OperatorID are set for ActionDialDirect.
	TargetExtension string `json:"target_extension,omitempty"`
	OperatorID      string `json:"operator_id,omitempty"`

	// QueueName and QueueStrategy are set for ActionRouteToQueue.
	QueueName     string `json:"queue_name,omitempty"`
	QueueStrategy string `json:"queue_strategy,omitempty"`

	// MenuID is set for ActionPlayMenu.
	MenuID string `json:"menu_id,omitempty"`

	// EstimatedWait accompanies the "no operators" menu.
	EstimatedWait time.Duration `json:"estimated_wait,omitempty"`

	// FallbackQueue, when set, is where the call goes if the primary
	// target cannot be reached.
	FallbackQueue string `json:"fallback_queue,omitempty"`

	// Reason is for logs and metrics only.
	Reason string `json:"reason,omitempty"`
}

type Action string

const (
	ActionDialDirect   Action = "dial_direct"
	ActionRouteToQueue Action = "route_to_queue"
	ActionPlayMenu     Action = "play_menu"
	ActionReject       Action = "reject"
)

// Menu ids handed to the announcement player.
const (
	MenuAfterHours  = "after-hours"
	MenuNoOperators = "no-operators"
	MenuMain        = "ivr-main"
	MenuVoicemail   = "voicemail"
	MenuCallback    = "callback"
)

// Queue distribution strategies understood by the switch.
const (
	StrategyLeastRecent = "leastrecent"
	StrategyFewestCalls = "fewestcalls"
	StrategyLinear      = "linear"
	StrategyRingAll     = "ringall"
)
