package calls

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("calls: record not found")

	// ErrStatusRegression is returned when an update would move a record
	// backwards along the status order (e.g. completed -> ringing).
	ErrStatusRegression = errors.New("calls: status transition not allowed")
)

// Store is the persistence collaborator for call records.
//
// Implementations must enforce CanTransition on status updates. Callers
// treat write failures as non-fatal: the in-memory session stays
// authoritative for the remainder of its lifetime.
type Store interface {
	Create(ctx context.Context, call Call) (Call, error)
	Update(ctx context.Context, id string, upd CallUpdate) (Call, error)
	GetByChannelID(ctx context.Context, channelID string) (Call, error)
	List(ctx context.Context, limit int) ([]Call, error)
}

// apply merges an update into a call, enforcing the status order.
// Shared by store implementations.
func apply(call Call, upd CallUpdate) (Call, error) {
	if upd.Status != nil {
		if !CanTransition(call.Status, *upd.Status) {
			return Call{}, ErrStatusRegression
		}
		call.Status = *upd.Status
	}
	if upd.OperatorID != nil {
		call.OperatorID = *upd.OperatorID
	}
	if upd.AnswerTime != nil {
		call.AnswerTime = upd.AnswerTime
	}
	if upd.EndTime != nil {
		call.EndTime = upd.EndTime
	}
	if upd.WaitTime != nil {
		call.WaitTime = *upd.WaitTime
	}
	if upd.TalkTime != nil {
		call.TalkTime = *upd.TalkTime
	}
	if upd.QueuePosition != nil {
		call.QueuePosition = *upd.QueuePosition
	}
	if upd.AbandonReason != nil {
		call.AbandonReason = *upd.AbandonReason
	}
	return call, nil
}
