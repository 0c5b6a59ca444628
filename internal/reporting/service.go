package reporting

import (
	"context"
	"errors"
	"sort"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// historyWindow bounds how much history a single summary scans.
const historyWindow = 10000

// CallSource abstracts read access to call history. calls.Store satisfies it.
type CallSource interface {
	List(ctx context.Context, limit int) ([]calls.Call, error)
}

type Service struct {
	source CallSource
}

func NewService(source CallSource) *Service { return &Service{source: source} }

// Summary aggregates call metrics over a time window.
func (s *Service) Summary(ctx context.Context, req SummaryRequest) (CallsSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.source == nil {
		return CallsSummary{}, errors.New("reporting: call source not configured")
	}

	rows, err := s.source.List(ctx, historyWindow)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{Queue: req.Queue, OperatorID: req.OperatorID}
	for _, c := range rows {
		if !req.Range.contains(c.StartTime) {
			continue
		}
		if req.Queue != "" && c.QueueName != req.Queue {
			continue
		}
		if req.OperatorID != "" && c.OperatorID != req.OperatorID {
			continue
		}
		accumulate(&out, c)
	}
	finish(&out)
	return out, nil
}

// QueueBreakdown aggregates the window per queue, sorted by queue name.
// Calls never assigned to a queue are reported under the empty name.
func (s *Service) QueueBreakdown(ctx context.Context, rng TimeRange) ([]QueueSummary, error) {
	if rng.From.IsZero() || rng.To.IsZero() || !rng.To.After(rng.From) {
		return nil, ErrInvalidRequest
	}
	if s.source == nil {
		return nil, errors.New("reporting: call source not configured")
	}

	rows, err := s.source.List(ctx, historyWindow)
	if err != nil {
		return nil, err
	}

	byQueue := make(map[string]*CallsSummary)
	for _, c := range rows {
		if !rng.contains(c.StartTime) {
			continue
		}
		sum, ok := byQueue[c.QueueName]
		if !ok {
			sum = &CallsSummary{Queue: c.QueueName}
			byQueue[c.QueueName] = sum
		}
		accumulate(sum, c)
	}

	out := make([]QueueSummary, 0, len(byQueue))
	for queue, sum := range byQueue {
		finish(sum)
		out = append(out, QueueSummary{Queue: queue, CallsSummary: *sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Queue < out[j].Queue })
	return out, nil
}

func accumulate(sum *CallsSummary, c calls.Call) {
	sum.TotalCalls++
	if c.AnswerTime != nil {
		sum.AnsweredCalls++
	}
	sum.TotalTalkSeconds += c.TalkTime
	sum.AverageWaitSeconds += c.WaitTime

	switch c.Status {
	case calls.CallStatusCompleted:
		sum.CompletedCalls++
	case calls.CallStatusMissed:
		sum.MissedCalls++
	case calls.CallStatusAbandoned:
		sum.AbandonedCalls++
	case calls.CallStatusTransferred:
		sum.TransferredCalls++
	case calls.CallStatusFailed:
		sum.FailedCalls++
	default:
		sum.ActiveCalls++
	}
}

// finish converts the running totals into averages and rates.
func finish(sum *CallsSummary) {
	if sum.TotalCalls == 0 {
		return
	}
	sum.AverageWaitSeconds /= sum.TotalCalls
	if sum.AnsweredCalls > 0 {
		sum.AverageTalkSeconds = sum.TotalTalkSeconds / sum.AnsweredCalls
	}
	sum.AnswerRate = float64(sum.AnsweredCalls) / float64(sum.TotalCalls)
}
