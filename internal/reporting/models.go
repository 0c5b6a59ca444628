package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// SummaryRequest requests aggregated call metrics. Queue and OperatorID
// narrow the aggregation when set.
type SummaryRequest struct {
	Range      TimeRange `json:"range"`
	Queue      string    `json:"queue,omitempty"`
	OperatorID string    `json:"operator_id,omitempty"`
}

type CallsSummary struct {
	Queue      string `json:"queue,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`

	TotalCalls       int `json:"total_calls"`
	AnsweredCalls    int `json:"answered_calls"`
	CompletedCalls   int `json:"completed_calls"`
	MissedCalls      int `json:"missed_calls"`
	AbandonedCalls   int `json:"abandoned_calls"`
	TransferredCalls int `json:"transferred_calls"`
	FailedCalls      int `json:"failed_calls"`
	ActiveCalls      int `json:"active_calls"`

	TotalTalkSeconds   int `json:"total_talk_seconds"`
	AverageTalkSeconds int `json:"average_talk_seconds"`
	AverageWaitSeconds int `json:"average_wait_seconds"`

	// AnswerRate is answered over total, 0..1.
	AnswerRate float64 `json:"answer_rate"`
}

// QueueSummary is the per-queue slice of a summary window.
type QueueSummary struct {
	Queue string `json:"queue"`
	CallsSummary
}
