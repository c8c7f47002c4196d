// Time-bounded cache of per-chat administrator rosters.
//
// Admin rosters change rarely but are consulted on almost every privileged
// command, so the roster is fetched once from the platform and served from
// memory until the TTL lapses. Manual reloads are throttled; automatic
// cache-miss reloads never are.
package admincache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrThrottled is returned by Refresh when a manual reload lands inside the
// cooldown window armed by a previous manual reload.
var ErrThrottled = errors.New("admin reload throttled, try again later")

const (
	DefaultTTL      = 30 * time.Minute
	DefaultCooldown = 10 * time.Minute
)

// RefreshReason tags why a roster refresh happened. Only manual refreshes arm
// a blocking cooldown.
type RefreshReason string

const (
	ReasonAuto   RefreshReason = "auto-refresh"
	ReasonManual RefreshReason = "manual-refresh"
)

type AdminEntry struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsAnonymous bool   `json:"is_anonymous"`
	IsBot       bool   `json:"is_bot"`
}

// Snapshot is one chat's admin roster at a point in time. Snapshots are
// replaced wholesale on refresh; ApplyLocalDelta swaps in a copy rather than
// mutating entries in place, so a Snapshot handed out by Get never changes
// under the caller.
type Snapshot struct {
	ChatID    int64
	Entries   []AdminEntry
	FetchedAt time.Time
	TTL       time.Duration
}

func (s *Snapshot) Contains(userID int64) bool {
	for _, e := range s.Entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Snapshot) expired(now time.Time) bool {
	return now.After(s.FetchedAt.Add(s.TTL))
}

// AdminLister is the single platform capability this cache needs.
type AdminLister interface {
	ListAdmins(ctx context.Context, chatID int64) ([]AdminEntry, error)
}

type DeltaOp string

const (
	DeltaAdd    DeltaOp = "add"
	DeltaRemove DeltaOp = "remove"
)

type Cache struct {
	logger   *slog.Logger
	lister   AdminLister
	throttle *Throttle
	ttl      time.Duration

	snapshots *xsync.MapOf[int64, *Snapshot]
	// serializes the check-throttle/fetch/store/arm sequence per chat
	locks *xsync.MapOf[int64, *sync.Mutex]

	now func() time.Time
}

func New(lister AdminLister, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		logger:    logger,
		lister:    lister,
		throttle:  NewThrottle(DefaultCooldown),
		ttl:       DefaultTTL,
		snapshots: xsync.NewMapOf[int64, *Snapshot](),
		locks:     xsync.NewMapOf[int64, *sync.Mutex](),
		now:       time.Now,
	}
}

func (c *Cache) chatLock(chatID int64) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(chatID, &sync.Mutex{})
	return mu
}

// Get returns the cached roster for a chat, or a miss if nothing is cached or
// the snapshot is past its TTL. It never fetches; the caller decides whether
// a miss warrants a Refresh.
func (c *Cache) Get(chatID int64) (*Snapshot, bool) {
	snap, ok := c.snapshots.Load(chatID)
	if !ok || snap.expired(c.now()) {
		return nil, false
	}
	return snap, true
}

// Refresh fetches the live roster and replaces the cached snapshot. A manual
// refresh inside an active manual cooldown fails with ErrThrottled before
// touching the platform API; automatic refreshes are never throttled, since
// refusing them would leave the cache permanently blind after expiry.
func (c *Cache) Refresh(ctx context.Context, chatID int64, reason RefreshReason) (*Snapshot, error) {
	mu := c.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	if c.throttle.IsBlocked(chatID, reason) {
		adminRefreshThrottled.Inc()
		return nil, ErrThrottled
	}

	entries, err := c.lister.ListAdmins(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing chat admins: %w", err)
	}

	snap := &Snapshot{
		ChatID:    chatID,
		Entries:   normalizeRoster(entries),
		FetchedAt: c.now(),
		TTL:       c.ttl,
	}
	c.snapshots.Store(chatID, snap)
	c.throttle.Arm(chatID, reason)
	adminRefreshCount.WithLabelValues(string(reason)).Inc()
	c.logger.Info("reloaded chat admins", "chatID", chatID, "count", len(snap.Entries), "reason", reason)
	return snap, nil
}

// ApplyLocalDelta optimistically patches the cached roster after a promote or
// demote, avoiding a full refresh round trip. The TTL clock is not reset: the
// patched snapshot keeps the original FetchedAt. No-op on a cache miss.
func (c *Cache) ApplyLocalDelta(chatID int64, entry AdminEntry, op DeltaOp) {
	mu := c.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	snap, ok := c.snapshots.Load(chatID)
	if !ok {
		return
	}

	next := &Snapshot{
		ChatID:    chatID,
		FetchedAt: snap.FetchedAt,
		TTL:       snap.TTL,
	}
	switch op {
	case DeltaAdd:
		if snap.Contains(entry.UserID) {
			return
		}
		next.Entries = append(append([]AdminEntry{}, snap.Entries...), entry)
	case DeltaRemove:
		for _, e := range snap.Entries {
			if e.UserID != entry.UserID {
				next.Entries = append(next.Entries, e)
			}
		}
	default:
		c.logger.Warn("unhandled admin cache delta op", "op", op)
		return
	}
	c.snapshots.Store(chatID, next)
}

// Purge drops any cached roster for the chat. Throttle state is untouched.
func (c *Cache) Purge(chatID int64) {
	c.snapshots.Delete(chatID)
}

// normalizeRoster drops bot accounts (bots never need privilege exemption,
// and caching them pads every Contains scan) and duplicate user ids.
func normalizeRoster(in []AdminEntry) []AdminEntry {
	out := make([]AdminEntry, 0, len(in))
	seen := make(map[int64]bool, len(in))
	for _, e := range in {
		if e.IsBot || seen[e.UserID] {
			continue
		}
		out = append(out, e)
		seen[e.UserID] = true
	}
	return out
}
