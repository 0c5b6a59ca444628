package operators

// Operator is a call-center agent reachable at a fixed extension.
type Operator struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Extension string `json:"extension"`

	Status OperatorStatus `json:"status"`

	// Queues lists queue names this operator serves.
	Queues []string `json:"queues,omitempty"`

	MaxConcurrentCalls int `json:"max_concurrent_calls"`
}

type OperatorStatus string

const (
	StatusOffline   OperatorStatus = "offline"
	StatusAvailable OperatorStatus = "available"
	StatusBusy      OperatorStatus = "busy"
	StatusPaused    OperatorStatus = "paused"
	StatusInCall    OperatorStatus = "in_call"
)

// DeviceStateToStatus maps a switch device state onto an operator status.
func DeviceStateToStatus(deviceState string) OperatorStatus {
	switch deviceState {
	case "NOT_INUSE":
		return StatusAvailable
	case "INUSE", "BUSY", "RINGING", "RINGINUSE", "ONHOLD":
		return StatusBusy
	case "UNAVAILABLE":
		return StatusOffline
	default:
		return StatusOffline
	}
}

func (o Operator) servesQueue(queue string) bool {
	for _, q := range o.Queues {
		if q == queue {
			return true
		}
	}
	return false
}
