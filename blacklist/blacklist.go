// Per-chat blacklist trigger rules and word-boundary matching.
package blacklist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/chatwarden/warden/store"
)

const Collection = "blacklists"

// AliasSeparator joins alternative spellings inside one trigger entry:
// "foo|bar" matches either alias, reporting whichever alias matched.
const AliasSeparator = "|"

const DefaultReason = "Automated Blacklisted word %s"

type Action string

const (
	ActionNone Action = "none"
	ActionWarn Action = "warn"
	ActionKick Action = "kick"
	ActionBan  Action = "ban"
	ActionMute Action = "mute"
)

func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(s)) {
	case ActionNone, ActionWarn, ActionKick, ActionBan, ActionMute:
		return Action(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown blacklist action: %q", s)
}

// Rule is a chat's single blacklist record: the trigger set, the action taken
// on a match, and the reason template. One record per chat, created lazily on
// first write.
type Rule struct {
	ChatID   int64    `json:"chat_id"`
	Triggers []string `json:"triggers"`
	Action   Action   `json:"action"`
	Reason   string   `json:"reason"`
}

func defaultRule(chatID int64) *Rule {
	return &Rule{
		ChatID:   chatID,
		Triggers: []string{},
		Action:   ActionNone,
		Reason:   DefaultReason,
	}
}

// RenderReason fills the rule's reason template with the matched trigger.
func (r *Rule) RenderReason(trigger string) string {
	if strings.Contains(r.Reason, "%s") {
		return fmt.Sprintf(r.Reason, trigger)
	}
	return r.Reason
}

// Store persists blacklist rules and answers match queries against them.
// Writes are serialized per chat and invalidate the compiled pattern cache,
// so the matcher never observes a half-updated trigger set.
type Store struct {
	logger   *slog.Logger
	db       store.Store
	patterns *patternCache
	locks    *xsync.MapOf[int64, *sync.Mutex]
}

func NewStore(db store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:   logger,
		db:       db,
		patterns: newPatternCache(),
		locks:    xsync.NewMapOf[int64, *sync.Mutex](),
	}
}

func ruleKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// Get loads a chat's rule, or reports absence. Absence is not an error.
func (s *Store) Get(ctx context.Context, chatID int64) (*Rule, bool, error) {
	raw, ok, err := s.db.Get(ctx, Collection, ruleKey(chatID))
	if err != nil {
		return nil, false, fmt.Errorf("loading blacklist rule: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var rule Rule
	if err := json.Unmarshal(raw, &rule); err != nil {
		return nil, false, fmt.Errorf("parsing blacklist rule: %w", err)
	}
	return &rule, true, nil
}

func (s *Store) put(ctx context.Context, rule *Rule) error {
	raw, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encoding blacklist rule: %w", err)
	}
	if err := s.db.Put(ctx, Collection, ruleKey(rule.ChatID), raw); err != nil {
		return fmt.Errorf("storing blacklist rule: %w", err)
	}
	s.patterns.Invalidate(rule.ChatID)
	return nil
}

func (s *Store) chatLock(chatID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(chatID, &sync.Mutex{})
	return mu
}

// loadOrDefault returns the stored rule or a fresh default one. The default
// is not persisted until a write succeeds.
func (s *Store) loadOrDefault(ctx context.Context, chatID int64) (*Rule, error) {
	rule, ok, err := s.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !ok {
		rule = defaultRule(chatID)
	}
	return rule, nil
}

// AddTrigger adds one trigger entry (possibly an alias group) to the chat's
// rule. Returns false if an equal trigger was already present; comparison is
// case-insensitive, storage preserves case for display.
func (s *Store) AddTrigger(ctx context.Context, chatID int64, trigger string) (bool, error) {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return false, fmt.Errorf("empty blacklist trigger")
	}
	mu := s.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	rule, err := s.loadOrDefault(ctx, chatID)
	if err != nil {
		return false, err
	}
	for _, t := range rule.Triggers {
		if strings.EqualFold(t, trigger) {
			return false, nil
		}
	}
	rule.Triggers = append(rule.Triggers, trigger)
	if err := s.put(ctx, rule); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveTrigger removes a trigger entry. Returns false if it was not present.
func (s *Store) RemoveTrigger(ctx context.Context, chatID int64, trigger string) (bool, error) {
	mu := s.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	rule, ok, err := s.Get(ctx, chatID)
	if err != nil || !ok {
		return false, err
	}
	kept := rule.Triggers[:0]
	removed := false
	for _, t := range rule.Triggers {
		if strings.EqualFold(t, trigger) {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return false, nil
	}
	rule.Triggers = kept
	if err := s.put(ctx, rule); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveAll clears the trigger set; action and reason settings remain.
func (s *Store) RemoveAll(ctx context.Context, chatID int64) error {
	mu := s.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	rule, ok, err := s.Get(ctx, chatID)
	if err != nil || !ok {
		return err
	}
	rule.Triggers = []string{}
	return s.put(ctx, rule)
}

func (s *Store) SetAction(ctx context.Context, chatID int64, action Action) error {
	mu := s.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	rule, err := s.loadOrDefault(ctx, chatID)
	if err != nil {
		return err
	}
	rule.Action = action
	return s.put(ctx, rule)
}

func (s *Store) SetReason(ctx context.Context, chatID int64, reason string) error {
	mu := s.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	rule, err := s.loadOrDefault(ctx, chatID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = DefaultReason
	}
	rule.Reason = reason
	return s.put(ctx, rule)
}
