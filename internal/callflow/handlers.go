package callflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/calls"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/operators"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/pbx"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/routing"
)

func (e *Engine) handleSessionStart(ctx context.Context, ev pbx.SessionStart) {
	e.mu.Lock()
	defer e.mu.Unlock()

	channelID := ev.Channel.ID
	if _, ok := e.sessions[channelID]; ok {
		e.log.Warn("duplicate session-start", "channel_id", channelID)
		return
	}

	now := e.now()
	s := &session{
		channelID: channelID,
		callID:    uuid.NewString(),
		caller:    ev.Channel.Caller.Number,
		called:    ev.CalledNumber(),
		status:    calls.CallStatusWaiting,
		start:     now,
		lastEvent: now,
	}
	e.sessions[channelID] = s

	dec := e.router.Route(ctx, routing.Input{
		CallerNumber: s.caller,
		CalledNumber: s.called,
		ChannelID:    channelID,
	})
	e.log.Info("routing inbound call",
		"channel_id", channelID, "caller", s.caller, "called", s.called,
		"action", dec.Action, "reason", dec.Reason)

	// Control commands may downgrade the decision, so the record is
	// created only after the placement settled.
	e.execute(ctx, s, dec)

	if _, err := e.store.Create(ctx, calls.Call{
		ID:           s.callID,
		CallerNumber: s.caller,
		CalledNumber: s.called,
		OperatorID:   s.operatorID,
		QueueName:    s.queue,
		ChannelID:    channelID,
		StartTime:    now,
		Status:       s.status,
	}); err != nil {
		e.log.Error("persist new call", "channel_id", channelID, "error", err)
	}

	e.notifier.Publish(NotifyIncomingCall, map[string]any{
		"call_id":       s.callID,
		"channel_id":    channelID,
		"caller_number": s.caller,
		"called_number": s.called,
		"action":        string(dec.Action),
		"queue_name":    s.queue,
		"operator_id":   s.operatorID,
	}, e.userIDFor(s.operatorID))
}

// execute acts on the routing decision via the switch. Control faults fall
// back to a queue rather than dropping the caller.
func (e *Engine) execute(ctx context.Context, s *session, dec routing.Decision) {
	switch dec.Action {
	case routing.ActionDialDirect:
		s.status = calls.CallStatusRinging
		s.operatorID = dec.OperatorID
		if err := e.control.Originate(ctx, pbx.OriginateRequest{Extension: dec.TargetExtension}); err != nil {
			e.log.Warn("direct dial failed, using fallback queue",
				"channel_id", s.channelID, "extension", dec.TargetExtension, "error", err)
			s.operatorID = ""
			s.status = calls.CallStatusWaiting
			e.sendToQueue(ctx, s, fallbackQueue(dec), "")
		}

	case routing.ActionRouteToQueue:
		e.sendToQueue(ctx, s, dec.QueueName, dec.FallbackQueue)

	case routing.ActionPlayMenu:
		if err := e.control.Answer(ctx, s.channelID); err != nil {
			e.log.Warn("answer for menu failed", "channel_id", s.channelID, "error", err)
		}
		if err := e.control.PlayAnnouncement(ctx, s.channelID, dec.MenuID); err != nil {
			e.log.Warn("menu playback failed", "channel_id", s.channelID, "menu", dec.MenuID, "error", err)
			if fb := fallbackQueue(dec); fb != "" {
				e.sendToQueue(ctx, s, fb, "")
			}
		}

	case routing.ActionReject:
		if fb := fallbackQueue(dec); fb != "" {
			e.sendToQueue(ctx, s, fb, "")
			return
		}
		if err := e.control.Hangup(ctx, s.channelID); err != nil {
			e.log.Warn("reject hangup failed", "channel_id", s.channelID, "error", err)
		}
	}
}

func (e *Engine) sendToQueue(ctx context.Context, s *session, queue, fallback string) {
	if err := e.control.RedirectToQueue(ctx, s.channelID, queue); err != nil {
		e.log.Error("queue redirect failed", "channel_id", s.channelID, "queue", queue, "error", err)
		if fallback != "" && fallback != queue {
			if err := e.control.RedirectToQueue(ctx, s.channelID, fallback); err != nil {
				e.log.Error("fallback redirect failed", "channel_id", s.channelID, "queue", fallback, "error", err)
			} else {
				queue = fallback
			}
		}
	}
	s.queue = queue
	s.status = calls.CallStatusWaiting
}

func fallbackQueue(dec routing.Decision) string {
	if dec.FallbackQueue != "" {
		return dec.FallbackQueue
	}
	return dec.QueueName
}

func (e *Engine) handleStateChanged(ctx context.Context, ev pbx.ChannelStateChanged) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[ev.Channel.ID]
	if !ok {
		if ev.Channel.State == "Down" {
			e.log.Debug("stale state change for finished channel", "channel_id", ev.Channel.ID)
			return
		}
		// Mid-call restart: no session but the channel is live. Rebuild
		// what we can from the event itself.
		s = e.reconstruct(ctx, ev.Channel)
	}
	s.lastEvent = e.now()

	switch ev.Channel.State {
	case "Ringing":
		if s.status == calls.CallStatusWaiting {
			s.status = calls.CallStatusRinging
			e.persist(ctx, s.callID, calls.CallUpdate{Status: statusPtr(calls.CallStatusRinging)})
		}
	case "Up":
		e.markAnswered(ctx, s)
	case "Down":
		e.finalize(ctx, s, e.now())
	}
}

func (e *Engine) handleTerminal(ctx context.Context, channelID, event string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[channelID]
	if !ok {
		e.log.Debug("stale terminal event", "channel_id", channelID, "event", event)
		return
	}
	e.finalize(ctx, s, e.now())
}

func (e *Engine) handleQueueJoined(ctx context.Context, ev pbx.QueueCallerJoined) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	entry := &queueEntry{
		uniqueID: ev.UniqueID,
		queue:    ev.Queue,
		caller:   ev.CallerNumber,
		joined:   now,
		position: ev.Position,
	}

	// A caller redirected out of our application keeps its channel id as
	// the queue unique id, so attach to an existing record when one exists.
	if rec, err := e.store.GetByChannelID(ctx, ev.UniqueID); err == nil {
		entry.callID = rec.ID
		e.persist(ctx, rec.ID, calls.CallUpdate{
			QueuePosition: intPtr(ev.Position),
		})
	} else {
		entry.callID = uuid.NewString()
		if _, err := e.store.Create(ctx, calls.Call{
			ID:            entry.callID,
			CallerNumber:  ev.CallerNumber,
			QueueName:     ev.Queue,
			ChannelID:     ev.UniqueID,
			StartTime:     now,
			Status:        calls.CallStatusWaiting,
			QueuePosition: ev.Position,
		}); err != nil {
			e.log.Error("persist queue call", "unique_id", ev.UniqueID, "error", err)
		}
	}

	e.waiting[ev.UniqueID] = entry
	e.dir.QueueJoined(ev.Queue)

	e.notifier.Publish(NotifyQueueJoin, map[string]any{
		"call_id":       entry.callID,
		"caller_number": ev.CallerNumber,
		"queue_name":    ev.Queue,
		"position":      ev.Position,
	}, "")
}

func (e *Engine) handleQueueLeft(ctx context.Context, ev pbx.QueueCallerLeft) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.waiting[ev.UniqueID]
	if !ok {
		e.log.Debug("stale queue leave", "unique_id", ev.UniqueID, "queue", ev.Queue)
		return
	}
	delete(e.waiting, ev.UniqueID)
	e.dir.QueueLeft(entry.queue)

	now := e.now()
	wait := secondsBetween(entry.joined, now)

	switch ev.Reason {
	case "transfer":
		// An operator took the call; bridge events carry it to completion.
		e.persist(ctx, entry.callID, calls.CallUpdate{
			Status:     statusPtr(calls.CallStatusAnswered),
			AnswerTime: &now,
			WaitTime:   &wait,
		})

	case "timeout":
		e.persist(ctx, entry.callID, calls.CallUpdate{
			Status:   statusPtr(calls.CallStatusMissed),
			EndTime:  &now,
			WaitTime: &wait,
		})
		e.notifier.Publish(NotifyCallMissed, map[string]any{
			"call_id":       entry.callID,
			"caller_number": entry.caller,
			"queue_name":    entry.queue,
			"wait_time":     wait,
		}, "")

	default:
		e.persist(ctx, entry.callID, calls.CallUpdate{
			Status:        statusPtr(calls.CallStatusAbandoned),
			EndTime:       &now,
			WaitTime:      &wait,
			AbandonReason: &ev.Reason,
		})
		e.notifier.Publish(NotifyCallAbandoned, map[string]any{
			"call_id":       entry.callID,
			"caller_number": entry.caller,
			"queue_name":    entry.queue,
			"wait_time":     wait,
			"reason":        ev.Reason,
		}, "")
	}
}

func (e *Engine) handleMemberRinging(ctx context.Context, ev pbx.QueueMemberRinging) {
	op, ok := e.dir.OperatorByExtension(extensionFromInterface(ev.Interface))
	if !ok {
		e.log.Debug("ringing for unknown member", "interface", ev.Interface, "queue", ev.Queue)
		return
	}
	e.notifier.Publish(NotifyIncomingCall, map[string]any{
		"caller_number": ev.CallerNumber,
		"queue_name":    ev.Queue,
		"operator_id":   op.ID,
	}, op.UserID)
}

func (e *Engine) handleMemberPause(ctx context.Context, iface string, status operators.OperatorStatus) {
	op, ok := e.dir.OperatorByExtension(extensionFromInterface(iface))
	if !ok {
		e.log.Debug("pause event for unknown member", "interface", iface)
		return
	}
	prev, _ := e.dir.SetStatus(op.ID, status)
	e.notifier.Publish(NotifyOperatorStatus, map[string]any{
		"operator_id": op.ID,
		"status":      string(status),
		"previous":    string(prev),
	}, op.UserID)
}

func (e *Engine) handleBridgeEntered(ctx context.Context, ev pbx.ChannelEnteredBridge) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[ev.Channel.ID]
	if !ok {
		s = e.reconstruct(ctx, ev.Channel)
	}
	s.lastEvent = e.now()

	// Bridging is the authoritative connect signal; it may beat or race
	// the channel-state Up event.
	e.markAnswered(ctx, s)
}

func (e *Engine) handleBridgeLeft(ctx context.Context, ev pbx.ChannelLeftBridge) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[ev.Channel.ID]
	if !ok {
		e.log.Debug("stale bridge leave", "channel_id", ev.Channel.ID)
		return
	}
	e.finalize(ctx, s, e.now())
}

// reconstruct rebuilds a session for a live channel we have no record of,
// which happens when the listener restarted mid-call. Caller holds e.mu.
func (e *Engine) reconstruct(ctx context.Context, ch pbx.Channel) *session {
	e.log.Warn("unknown channel, reconstructing session", "channel_id", ch.ID, "state", ch.State)

	now := e.now()
	s := &session{
		channelID: ch.ID,
		callID:    uuid.NewString(),
		caller:    ch.Caller.Number,
		called:    ch.Dialplan.Exten,
		status:    calls.CallStatusWaiting,
		start:     now,
		lastEvent: now,
	}
	e.sessions[ch.ID] = s

	if _, err := e.store.Create(ctx, calls.Call{
		ID:           s.callID,
		CallerNumber: s.caller,
		CalledNumber: s.called,
		ChannelID:    ch.ID,
		StartTime:    now,
		Status:       s.status,
	}); err != nil {
		e.log.Error("persist reconstructed call", "channel_id", ch.ID, "error", err)
	}
	return s
}

// markAnswered records the answer exactly once. Caller holds e.mu.
func (e *Engine) markAnswered(ctx context.Context, s *session) {
	if s.answer != nil {
		return
	}
	now := e.now()
	s.answer = &now
	s.status = calls.CallStatusAnswered
	wait := secondsBetween(s.start, now)

	e.persist(ctx, s.callID, calls.CallUpdate{
		Status:     statusPtr(calls.CallStatusAnswered),
		AnswerTime: &now,
		WaitTime:   &wait,
	})

	if op, ok := e.dir.ByID(s.operatorID); ok {
		if _, err := e.dir.AcquireSlot(ctx, op); err != nil {
			e.log.Warn("acquire call slot", "operator_id", op.ID, "error", err)
		}
		e.dir.SetStatus(op.ID, operators.StatusInCall)
	}

	e.notifier.Publish(NotifyCallAnswered, map[string]any{
		"call_id":       s.callID,
		"channel_id":    s.channelID,
		"caller_number": s.caller,
		"operator_id":   s.operatorID,
		"wait_time":     wait,
	}, e.userIDFor(s.operatorID))
}

// finalize closes a session: persists the terminal record, releases the
// operator, notifies, and removes the session. Caller holds e.mu. Removing
// the session makes a second terminal event for the channel a no-op.
func (e *Engine) finalize(ctx context.Context, s *session, end time.Time) {
	delete(e.sessions, s.channelID)

	var (
		status     calls.CallStatus
		wait, talk int
	)
	if s.answer != nil {
		status = calls.CallStatusCompleted
		wait = secondsBetween(s.start, *s.answer)
		talk = secondsBetween(*s.answer, end)
	} else {
		status = calls.CallStatusMissed
		wait = secondsBetween(s.start, end)
	}
	s.status = status

	e.persist(ctx, s.callID, calls.CallUpdate{
		Status:   &status,
		EndTime:  &end,
		WaitTime: &wait,
		TalkTime: &talk,
	})

	if s.operatorID != "" && s.answer != nil {
		if err := e.dir.ReleaseSlot(ctx, s.operatorID); err != nil {
			e.log.Warn("release call slot", "operator_id", s.operatorID, "error", err)
		}
		e.dir.SetStatus(s.operatorID, operators.StatusAvailable)
	}

	kind := NotifyCallEnded
	if status == calls.CallStatusMissed {
		kind = NotifyCallMissed
	}
	e.notifier.Publish(kind, map[string]any{
		"call_id":       s.callID,
		"channel_id":    s.channelID,
		"caller_number": s.caller,
		"operator_id":   s.operatorID,
		"status":        string(status),
		"wait_time":     wait,
		"talk_time":     talk,
	}, e.userIDFor(s.operatorID))
}

func (e *Engine) persist(ctx context.Context, callID string, upd calls.CallUpdate) {
	if _, err := e.store.Update(ctx, callID, upd); err != nil {
		e.log.Error("persist call update", "call_id", callID, "error", err)
	}
}

func (e *Engine) userIDFor(operatorID string) string {
	if operatorID == "" {
		return ""
	}
	if op, ok := e.dir.ByID(operatorID); ok {
		return op.UserID
	}
	return ""
}

func secondsBetween(from, to time.Time) int {
	s := int(to.Sub(from).Seconds())
	if s < 0 {
		return 0
	}
	return s
}

func statusPtr(s calls.CallStatus) *calls.CallStatus { return &s }

func intPtr(v int) *int { return &v }

// extensionFromInterface extracts the extension from a member interface
// such as "PJSIP/1001" or a channel-suffixed "PJSIP/1001-000001".
func extensionFromInterface(iface string) string {
	if i := strings.IndexByte(iface, '/'); i >= 0 {
		iface = iface[i+1:]
	}
	if i := strings.IndexByte(iface, '-'); i >= 0 {
		iface = iface[:i]
	}
	return iface
}
