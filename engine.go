package warden

import (
	"context"
	"log/slog"

	"github.com/chatwarden/warden/admincache"
	"github.com/chatwarden/warden/approvals"
	"github.com/chatwarden/warden/blacklist"
	"github.com/chatwarden/warden/warns"
)

// Engine ties the moderation subsystems together: exemption resolution,
// blacklist matching, and warning escalation.
//
// All fields should be set; Staff may be empty but not nil if support-staff
// exemption is wanted.
type Engine struct {
	Logger    *slog.Logger
	Client    ChatClient
	Admins    *admincache.Cache
	Blacklist *blacklist.Store
	Warns     *warns.Store
	Approvals *approvals.Store
	// process-wide support staff (owner, developers, sudo users); never
	// persisted per chat
	Staff     map[int64]bool
}

// WarnResult reports the outcome of one warning: the resulting count against
// the chat's limit, and the terminal action if this warning crossed it.
// ActionErr is set when the platform refused or failed the action; the
// warning itself is still persisted, so a user can't shed warnings by baiting
// a bot that isn't promoted yet.
type WarnResult struct {
	Exempt    bool   `json:"exempt"`
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Action    Action `json:"action_taken"`
	ActionErr error  `json:"-"`
}

// MessageOutcome reports what the engine did with one inbound message.
type MessageOutcome struct {
	Exempt    bool             `json:"exempt"`
	Match     *blacklist.Match `json:"match,omitempty"`
	Warn      *WarnResult      `json:"warn,omitempty"`
	Action    Action           `json:"action_taken,omitempty"`
	ActionErr error            `json:"-"`
}

// Warn records a warning against a user and escalates when the chat's limit
// is crossed. Exempt users are never warned. The escalation action fires at
// most once per crossing: re-warning an already escalated user only grows
// the count.
func (e *Engine) Warn(ctx context.Context, chatID, userID int64, reason string) (*WarnResult, error) {
	exempt, err := e.IsExempt(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if exempt {
		return &WarnResult{Exempt: true}, nil
	}

	rec, err := e.Warns.Warn(ctx, chatID, userID, reason)
	if err != nil {
		return nil, err
	}
	warnIssuedCount.Inc()

	settings, err := e.Warns.GetSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}

	res := &WarnResult{
		Count: rec.Count(),
		Limit: settings.Limit,
	}
	res.Action = EscalationAction(rec.Count()-1, rec.Count(), settings.Limit, settings.Mode)
	if res.Action == ActionNone {
		return res, nil
	}

	escalationCount.WithLabelValues(string(settings.Mode)).Inc()
	if err := e.applyAction(ctx, chatID, userID, res.Action); err != nil {
		// the count is deliberately not rolled back
		actionFailureCount.WithLabelValues(string(res.Action)).Inc()
		e.Logger.Warn("escalation action failed",
			"chatID", chatID, "userID", userID, "action", res.Action, "err", err)
		res.ActionErr = err
	}
	return res, nil
}

// RemoveLastWarn pops a user's most recent warning. ErrNoWarnings when there
// is nothing to remove. Escalation is not retroactively undone.
func (e *Engine) RemoveLastWarn(ctx context.Context, chatID, userID int64) (*warns.Record, error) {
	return e.Warns.RemoveLast(ctx, chatID, userID)
}

// ResetWarns clears a user's record entirely; the next warning counts from
// zero and a fresh limit crossing escalates again.
func (e *Engine) ResetWarns(ctx context.Context, chatID, userID int64) error {
	return e.Warns.Reset(ctx, chatID, userID)
}

// Warnings returns a user's current record.
func (e *Engine) Warnings(ctx context.Context, chatID, userID int64) (*warns.Record, error) {
	return e.Warns.Get(ctx, chatID, userID)
}

// CheckBlacklist scans text against the chat's trigger set without acting on
// the result.
func (e *Engine) CheckBlacklist(ctx context.Context, chatID int64, text string) (*blacklist.Match, error) {
	return e.Blacklist.Match(ctx, chatID, text)
}

// ReloadAdmins refreshes a chat's admin roster. Manual reloads are throttled
// (ErrThrottled inside the cooldown); automatic ones never are.
func (e *Engine) ReloadAdmins(ctx context.Context, chatID int64, manual bool) (*admincache.Snapshot, error) {
	reason := admincache.ReasonAuto
	if manual {
		reason = admincache.ReasonManual
	}
	return e.Admins.Refresh(ctx, chatID, reason)
}

// ProcessMessage runs one inbound event through the moderation pipeline:
// exemption, then trigger matching, then the configured action, applied
// either directly or through the warn counter.
func (e *Engine) ProcessMessage(ctx context.Context, evt *MessageEvent) (out *MessageOutcome, err error) {
	// similar to an HTTP server, recover panics from a single event rather
	// than taking the process down
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("moderation event execution exception",
				"err", r, "chatID", evt.ChatID, "userID", evt.UserID)
			eventProcessCount.WithLabelValues("panic").Inc()
			out, err = &MessageOutcome{}, nil
		}
	}()

	if evt.IsFromBot {
		eventProcessCount.WithLabelValues("skipped").Inc()
		return &MessageOutcome{}, nil
	}

	exempt, err := e.IsExempt(ctx, evt.ChatID, evt.UserID)
	if err != nil {
		eventProcessCount.WithLabelValues("error").Inc()
		return nil, err
	}
	if exempt {
		eventProcessCount.WithLabelValues("exempt").Inc()
		return &MessageOutcome{Exempt: true}, nil
	}

	match, err := e.Blacklist.Match(ctx, evt.ChatID, evt.Text)
	if err != nil {
		eventProcessCount.WithLabelValues("error").Inc()
		return nil, err
	}
	if match == nil {
		eventProcessCount.WithLabelValues("clean").Inc()
		return &MessageOutcome{}, nil
	}

	blacklistHitCount.WithLabelValues(string(match.Action)).Inc()
	logger := e.Logger.With("chatID", evt.ChatID, "userID", evt.UserID, "trigger", match.Trigger)
	out = &MessageOutcome{Match: match}

	switch match.Action {
	case blacklist.ActionWarn:
		// blacklist warnings share the manual-warn engine: same limit,
		// same mode, same escalation
		res, err := e.Warn(ctx, evt.ChatID, evt.UserID, match.Reason)
		if err != nil {
			eventProcessCount.WithLabelValues("error").Inc()
			return nil, err
		}
		out.Warn = res
	case blacklist.ActionKick, blacklist.ActionBan, blacklist.ActionMute:
		// direct actions bypass the warn counter entirely
		out.Action = BlacklistAction(match.Action)
		if err := e.applyAction(ctx, evt.ChatID, evt.UserID, out.Action); err != nil {
			actionFailureCount.WithLabelValues(string(out.Action)).Inc()
			logger.Warn("blacklist action failed", "action", out.Action, "err", err)
			out.ActionErr = err
		}
	}

	logger.Info("blacklist trigger matched", "action", match.Action)
	eventProcessCount.WithLabelValues("matched").Inc()
	return out, nil
}
