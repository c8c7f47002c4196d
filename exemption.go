package warden

import (
	"context"
)

// IsExempt reports whether a user is immune to moderation in a chat. Checks
// short-circuit cheapest first: process-wide support staff, then the cached
// admin roster, then the chat's approved list.
//
// A privilege-cache miss does not force a refresh: blocking the hot message
// path on a platform API call is worse than the bounded window in which an
// uncached admin is treated as a regular user. The explicit reload command
// and the automatic refresh on privileged commands keep that window short.
func (e *Engine) IsExempt(ctx context.Context, chatID, userID int64) (bool, error) {
	if e.Staff[userID] {
		return true, nil
	}
	if snap, ok := e.Admins.Get(chatID); ok && snap.Contains(userID) {
		return true, nil
	}
	approved, err := e.Approvals.IsApproved(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return approved, nil
}
