package admincache

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type throttleState struct {
	CooldownUntil time.Time
	Reason        RefreshReason
}

// Throttle guards against repeated manual roster reloads (a user mashing the
// reload command). The cooldown is a monotonic deadline: re-arming overwrites
// the previous deadline. Automatic refreshes only update bookkeeping and
// never block.
type Throttle struct {
	cooldown time.Duration
	state    *xsync.MapOf[int64, throttleState]
	now      func() time.Time
}

func NewThrottle(cooldown time.Duration) *Throttle {
	return &Throttle{
		cooldown: cooldown,
		state:    xsync.NewMapOf[int64, throttleState](),
		now:      time.Now,
	}
}

// IsBlocked reports whether a refresh with the given reason must be refused.
// Only a manual refresh inside a cooldown armed by a previous manual refresh
// blocks; the very first refresh for a chat is always allowed.
func (t *Throttle) IsBlocked(chatID int64, reason RefreshReason) bool {
	if reason != ReasonManual {
		return false
	}
	st, ok := t.state.Load(chatID)
	if !ok || st.Reason != ReasonManual {
		return false
	}
	return t.now().Before(st.CooldownUntil)
}

func (t *Throttle) Arm(chatID int64, reason RefreshReason) {
	st := throttleState{Reason: reason}
	if reason == ReasonManual {
		st.CooldownUntil = t.now().Add(t.cooldown)
	}
	t.state.Store(chatID, st)
}
