package warden

import (
	"context"
	"time"

	"github.com/chatwarden/warden/blacklist"
	"github.com/chatwarden/warden/warns"
)

// Action is a concrete account action the engine can take against a user.
type Action string

const (
	ActionNone Action = "none"
	ActionKick Action = "kick"
	ActionBan  Action = "ban"
	ActionMute Action = "mute"
)

// KickRejoinWindow is how long a kicked user stays out before they may
// rejoin. Kick is a temporary removal, not a ban.
const KickRejoinWindow = 45 * time.Second

// EscalationAction is the pure policy decision for warning escalation: the
// terminal action fires exactly when this warning crosses the limit. A user
// already at or past the limit stays escalated but triggers nothing new
// until an explicit reset.
func EscalationAction(prevCount, newCount, limit int, mode warns.Mode) Action {
	if prevCount >= limit || newCount < limit {
		return ActionNone
	}
	switch mode {
	case warns.ModeBan:
		return ActionBan
	case warns.ModeMute:
		return ActionMute
	default:
		return ActionKick
	}
}

// BlacklistAction maps a rule's configured action to an account action.
// "none" and "warn" yield ActionNone here: "none" means report-only, and
// "warn" goes through the infraction engine instead of acting directly.
func BlacklistAction(a blacklist.Action) Action {
	switch a {
	case blacklist.ActionKick:
		return ActionKick
	case blacklist.ActionBan:
		return ActionBan
	case blacklist.ActionMute:
		return ActionMute
	default:
		return ActionNone
	}
}

// applyAction invokes the platform primitive for an action, carrying the
// caller's context so a cancelled event cancels the call.
func (e *Engine) applyAction(ctx context.Context, chatID, userID int64, action Action) error {
	switch action {
	case ActionKick:
		return e.Client.Kick(ctx, chatID, userID, time.Now().Add(KickRejoinWindow))
	case ActionBan:
		return e.Client.Ban(ctx, chatID, userID)
	case ActionMute:
		// mute revokes all send permissions indefinitely
		return e.Client.Restrict(ctx, chatID, userID, PermissionSet{})
	}
	return nil
}
