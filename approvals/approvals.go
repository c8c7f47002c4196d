// Per-chat approved-user lists: users immune to moderation without being
// admins.
package approvals

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/chatwarden/warden/store"
)

const Collection = "approvals"

type record struct {
	ChatID  int64   `json:"chat_id"`
	UserIDs []int64 `json:"user_ids"`
}

type Store struct {
	logger *slog.Logger
	db     store.Store
	locks  *xsync.MapOf[int64, *sync.Mutex]
}

func NewStore(db store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		db:     db,
		locks:  xsync.NewMapOf[int64, *sync.Mutex](),
	}
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (s *Store) chatLock(chatID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(chatID, &sync.Mutex{})
	return mu
}

func (s *Store) load(ctx context.Context, chatID int64) (*record, error) {
	raw, ok, err := s.db.Get(ctx, Collection, chatKey(chatID))
	if err != nil {
		return nil, fmt.Errorf("loading approvals: %w", err)
	}
	if !ok {
		return &record{ChatID: chatID, UserIDs: []int64{}}, nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("parsing approvals: %w", err)
	}
	return &rec, nil
}

func (s *Store) put(ctx context.Context, rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding approvals: %w", err)
	}
	if err := s.db.Put(ctx, Collection, chatKey(rec.ChatID), raw); err != nil {
		return fmt.Errorf("storing approvals: %w", err)
	}
	return nil
}

// Approve adds a user to the chat's approved list. Returns false if they were
// already approved.
func (s *Store) Approve(ctx context.Context, chatID, userID int64) (bool, error) {
	mu := s.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.load(ctx, chatID)
	if err != nil {
		return false, err
	}
	for _, id := range rec.UserIDs {
		if id == userID {
			return false, nil
		}
	}
	rec.UserIDs = append(rec.UserIDs, userID)
	if err := s.put(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Unapprove removes a user from the chat's approved list. Returns false if
// they were not on it.
func (s *Store) Unapprove(ctx context.Context, chatID, userID int64) (bool, error) {
	mu := s.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.load(ctx, chatID)
	if err != nil {
		return false, err
	}
	kept := rec.UserIDs[:0]
	removed := false
	for _, id := range rec.UserIDs {
		if id == userID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	if !removed {
		return false, nil
	}
	rec.UserIDs = kept
	if err := s.put(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// UnapproveAll clears the chat's approved list.
func (s *Store) UnapproveAll(ctx context.Context, chatID int64) error {
	mu := s.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.db.Delete(ctx, Collection, chatKey(chatID)); err != nil {
		return fmt.Errorf("deleting approvals: %w", err)
	}
	return nil
}

func (s *Store) IsApproved(ctx context.Context, chatID, userID int64) (bool, error) {
	rec, err := s.load(ctx, chatID)
	if err != nil {
		return false, err
	}
	for _, id := range rec.UserIDs {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

// Approved lists the chat's approved users in approval order.
func (s *Store) Approved(ctx context.Context, chatID int64) ([]int64, error) {
	rec, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return rec.UserIDs, nil
}
