// Warning records and per-chat warn settings.
//
// A warning record is the ordered list of reasons; the count is always
// derived from that list and never stored independently. Read-modify-write
// sequences are serialized per (chat, user) so two concurrent warnings can
// not both observe the same count.
package warns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/chatwarden/warden/store"
)

const (
	RecordCollection   = "warns"
	SettingsCollection = "warn_settings"
)

const (
	DefaultLimit = 3
	MaxLimit     = 100
)

// ErrNoWarnings is returned when removing a warning from a user that has
// none. Callers surface it as a no-op response, not a failure.
var ErrNoWarnings = errors.New("user has no warnings")

// Mode is the terminal action applied when a user crosses the warn limit.
type Mode string

const (
	ModeKick Mode = "kick"
	ModeBan  Mode = "ban"
	ModeMute Mode = "mute"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeKick, ModeBan, ModeMute:
		return Mode(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown warn mode: %q", s)
}

// Record is one user's accumulated warnings in one chat. Count is len(Reasons)
// by construction; individual reasons may be empty strings.
type Record struct {
	ChatID  int64    `json:"chat_id"`
	UserID  int64    `json:"user_id"`
	Reasons []string `json:"reasons"`
}

func (r *Record) Count() int {
	return len(r.Reasons)
}

type Settings struct {
	ChatID int64 `json:"chat_id"`
	Limit  int   `json:"warn_limit"`
	Mode   Mode  `json:"warn_mode"`
}

func defaultSettings(chatID int64) *Settings {
	return &Settings{ChatID: chatID, Limit: DefaultLimit, Mode: ModeKick}
}

type Store struct {
	logger *slog.Logger
	db     store.Store
	locks  *xsync.MapOf[string, *sync.Mutex]
}

func NewStore(db store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		db:     db,
		locks:  xsync.NewMapOf[string, *sync.Mutex](),
	}
}

func recordKey(chatID, userID int64) string {
	return fmt.Sprintf("%d/%d", chatID, userID)
}

func (s *Store) userLock(chatID, userID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(recordKey(chatID, userID), &sync.Mutex{})
	return mu
}

func (s *Store) load(ctx context.Context, chatID, userID int64) (*Record, error) {
	raw, ok, err := s.db.Get(ctx, RecordCollection, recordKey(chatID, userID))
	if err != nil {
		return nil, fmt.Errorf("loading warn record: %w", err)
	}
	if !ok {
		return &Record{ChatID: chatID, UserID: userID, Reasons: []string{}}, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("parsing warn record: %w", err)
	}
	return &rec, nil
}

func (s *Store) put(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding warn record: %w", err)
	}
	if err := s.db.Put(ctx, RecordCollection, recordKey(rec.ChatID, rec.UserID), raw); err != nil {
		return fmt.Errorf("storing warn record: %w", err)
	}
	return nil
}

// Warn appends a reason to the user's record and returns the updated record.
// The record is created lazily on the first warning.
func (s *Store) Warn(ctx context.Context, chatID, userID int64, reason string) (*Record, error) {
	mu := s.userLock(chatID, userID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.load(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	rec.Reasons = append(rec.Reasons, reason)
	if err := s.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RemoveLast pops the most recent warning. ErrNoWarnings if there are none.
func (s *Store) RemoveLast(ctx context.Context, chatID, userID int64) (*Record, error) {
	mu := s.userLock(chatID, userID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.load(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if rec.Count() == 0 {
		return nil, ErrNoWarnings
	}
	rec.Reasons = rec.Reasons[:len(rec.Reasons)-1]
	if err := s.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Reset deletes the record entirely, returning the user to a clean slate.
// Resetting an absent record is fine.
func (s *Store) Reset(ctx context.Context, chatID, userID int64) error {
	mu := s.userLock(chatID, userID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.db.Delete(ctx, RecordCollection, recordKey(chatID, userID)); err != nil {
		return fmt.Errorf("deleting warn record: %w", err)
	}
	return nil
}

// Get returns the user's current record; a user with no warnings gets a zero
// record, not an error.
func (s *Store) Get(ctx context.Context, chatID, userID int64) (*Record, error) {
	return s.load(ctx, chatID, userID)
}

func settingsKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// GetSettings returns the chat's warn settings, falling back to the defaults
// (limit 3, kick) when none are stored.
func (s *Store) GetSettings(ctx context.Context, chatID int64) (*Settings, error) {
	raw, ok, err := s.db.Get(ctx, SettingsCollection, settingsKey(chatID))
	if err != nil {
		return nil, fmt.Errorf("loading warn settings: %w", err)
	}
	if !ok {
		return defaultSettings(chatID), nil
	}
	var st Settings
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("parsing warn settings: %w", err)
	}
	return &st, nil
}

func (s *Store) putSettings(ctx context.Context, st *Settings) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding warn settings: %w", err)
	}
	if err := s.db.Put(ctx, SettingsCollection, settingsKey(st.ChatID), raw); err != nil {
		return fmt.Errorf("storing warn settings: %w", err)
	}
	return nil
}

func (s *Store) SetLimit(ctx context.Context, chatID int64, limit int) (*Settings, error) {
	if limit < 1 || limit > MaxLimit {
		return nil, fmt.Errorf("warn limit must be between 1 and %d, got %d", MaxLimit, limit)
	}
	st, err := s.GetSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	st.Limit = limit
	if err := s.putSettings(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) SetMode(ctx context.Context, chatID int64, mode Mode) (*Settings, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	st, err := s.GetSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	st.Mode = mode
	if err := s.putSettings(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
