package calls

import "time"

// Call is the durable record of a single call, correlated 1:1 with the
// switch channel that carried it.
//
// Durations are whole seconds. WaitTime covers start..answer (or start..end
// for unanswered calls); TalkTime covers answer..end.
type Call struct {
	ID           string `json:"id" db:"id"`
	CallerNumber string `json:"caller_number" db:"caller_number"`
	CalledNumber string `json:"called_number,omitempty" db:"called_number"`
	OperatorID   string `json:"operator_id,omitempty" db:"operator_id"`
	QueueName    string `json:"queue_name,omitempty" db:"queue_name"`
	ChannelID    string `json:"channel_id,omitempty" db:"channel_id"`

	StartTime  time.Time  `json:"start_time" db:"start_time"`
	AnswerTime *time.Time `json:"answer_time,omitempty" db:"answer_time"`
	EndTime    *time.Time `json:"end_time,omitempty" db:"end_time"`

	WaitTime int `json:"wait_time" db:"wait_time"`
	TalkTime int `json:"talk_time" db:"talk_time"`

	Status CallStatus `json:"status" db:"status"`

	QueuePosition int    `json:"queue_position,omitempty" db:"queue_position"`
	AbandonReason string `json:"abandon_reason,omitempty" db:"abandon_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusWaiting     CallStatus = "waiting"
	CallStatusRinging     CallStatus = "ringing"
	CallStatusAnswered    CallStatus = "answered"
	CallStatusCompleted   CallStatus = "completed"
	CallStatusMissed      CallStatus = "missed"
	CallStatusAbandoned   CallStatus = "abandoned"
	CallStatusTransferred CallStatus = "transferred"
	CallStatusFailed      CallStatus = "failed"
)

// IsTerminal reports whether a status ends the record's lifecycle.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusMissed, CallStatusAbandoned, CallStatusTransferred, CallStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one status to another respects
// the partial order waiting/ringing -> answered -> completed, with escapes
// from any non-terminal state to missed/abandoned/transferred/failed.
// Terminal statuses never regress.
func CanTransition(from, to CallStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	switch to {
	case CallStatusMissed, CallStatusAbandoned, CallStatusTransferred, CallStatusFailed:
		return true
	case CallStatusAnswered:
		return from == CallStatusWaiting || from == CallStatusRinging
	case CallStatusCompleted:
		return from == CallStatusAnswered
	case CallStatusRinging:
		// Pre-answer progression; a waiting caller may start ringing.
		return from == CallStatusWaiting
	case CallStatusWaiting:
		// Only as an initial status; no going back.
		return false
	default:
		return false
	}
}

// CallUpdate carries the mutable fields of a call record. Nil means "leave as is".
type CallUpdate struct {
	OperatorID    *string
	AnswerTime    *time.Time
	EndTime       *time.Time
	WaitTime      *int
	TalkTime      *int
	Status        *CallStatus
	QueuePosition *int
	AbandonReason *string
}
