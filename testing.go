package warden

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chatwarden/warden/admincache"
	"github.com/chatwarden/warden/approvals"
	"github.com/chatwarden/warden/blacklist"
	"github.com/chatwarden/warden/store"
	"github.com/chatwarden/warden/warns"
)

// ActionCall records one kick/ban/restrict invocation on a RecordingClient.
type ActionCall struct {
	ChatID int64
	UserID int64
	Until  time.Time
	Perms  PermissionSet
}

// RecordingClient is a ChatClient for tests: rosters come from the Rosters
// map, actions are recorded, and ActionErr (when set) is returned from every
// action call. Intentionally exported, for use in other packages. Safe for
// concurrent calls; read the recorded fields only after the goroutines using
// the client have been joined.
type RecordingClient struct {
	mu        sync.Mutex
	Rosters   map[int64][]admincache.AdminEntry
	ListCalls int
	Kicks     []ActionCall
	Bans      []ActionCall
	Restricts []ActionCall
	ActionErr error
}

var _ ChatClient = (*RecordingClient)(nil)

func NewRecordingClient() *RecordingClient {
	return &RecordingClient{
		Rosters: make(map[int64][]admincache.AdminEntry),
	}
}

func (c *RecordingClient) ListAdmins(ctx context.Context, chatID int64) ([]admincache.AdminEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ListCalls++
	return c.Rosters[chatID], nil
}

func (c *RecordingClient) Kick(ctx context.Context, chatID, userID int64, until time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ActionErr != nil {
		return c.ActionErr
	}
	c.Kicks = append(c.Kicks, ActionCall{ChatID: chatID, UserID: userID, Until: until})
	return nil
}

func (c *RecordingClient) Ban(ctx context.Context, chatID, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ActionErr != nil {
		return c.ActionErr
	}
	c.Bans = append(c.Bans, ActionCall{ChatID: chatID, UserID: userID})
	return nil
}

func (c *RecordingClient) Restrict(ctx context.Context, chatID, userID int64, perms PermissionSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ActionErr != nil {
		return c.ActionErr
	}
	c.Restricts = append(c.Restricts, ActionCall{ChatID: chatID, UserID: userID, Perms: perms})
	return nil
}

// EngineTestFixture builds an engine on in-memory stores and a
// RecordingClient.
func EngineTestFixture() (*Engine, *RecordingClient) {
	client := NewRecordingClient()
	db := store.NewMemStore()
	logger := slog.Default()
	eng := &Engine{
		Logger:    logger,
		Client:    client,
		Admins:    admincache.New(client, logger),
		Blacklist: blacklist.NewStore(db, logger),
		Warns:     warns.NewStore(db, logger),
		Approvals: approvals.NewStore(db, logger),
		Staff:     map[int64]bool{},
	}
	return eng, client
}
