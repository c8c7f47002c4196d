package warden

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/chatwarden/warden/admincache"
)

// PermissionSet mirrors the platform's per-member permission toggles. The
// zero value revokes everything, which is what a mute applies.
type PermissionSet struct {
	CanSendMessages bool `json:"can_send_messages"`
	CanSendMedia    bool `json:"can_send_media"`
	CanSendPolls    bool `json:"can_send_polls"`
	CanAddPreviews  bool `json:"can_add_previews"`
}

// ChatClient is the messaging-platform capability surface the engine needs:
// roster listing plus the kick/ban/restrict primitives. All calls are
// fallible and may report ErrInsufficientRights.
type ChatClient interface {
	admincache.AdminLister
	Kick(ctx context.Context, chatID, userID int64, until time.Time) error
	Ban(ctx context.Context, chatID, userID int64) error
	Restrict(ctx context.Context, chatID, userID int64, perms PermissionSet) error
}

// RateLimitedClient caps roster listing against the upstream API. Moderation
// actions pass through: they are already bounded by event volume, roster
// listing is what refresh storms hammer.
type RateLimitedClient struct {
	Client  ChatClient
	Limiter *rate.Limiter
}

var _ ChatClient = (*RateLimitedClient)(nil)

func NewRateLimitedClient(client ChatClient, perSecond int) *RateLimitedClient {
	return &RateLimitedClient{
		Client:  client,
		Limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (c *RateLimitedClient) ListAdmins(ctx context.Context, chatID int64) ([]admincache.AdminEntry, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.Client.ListAdmins(ctx, chatID)
}

func (c *RateLimitedClient) Kick(ctx context.Context, chatID, userID int64, until time.Time) error {
	return c.Client.Kick(ctx, chatID, userID, until)
}

func (c *RateLimitedClient) Ban(ctx context.Context, chatID, userID int64) error {
	return c.Client.Ban(ctx, chatID, userID)
}

func (c *RateLimitedClient) Restrict(ctx context.Context, chatID, userID int64, perms PermissionSet) error {
	return c.Client.Restrict(ctx, chatID, userID, perms)
}

// NoopClient is a stand-in for deployments where the real transport lives in
// another process. Roster listings come back empty; actions succeed silently.
type NoopClient struct{}

var _ ChatClient = (*NoopClient)(nil)

func (NoopClient) ListAdmins(ctx context.Context, chatID int64) ([]admincache.AdminEntry, error) {
	return []admincache.AdminEntry{}, nil
}

func (NoopClient) Kick(ctx context.Context, chatID, userID int64, until time.Time) error {
	return nil
}

func (NoopClient) Ban(ctx context.Context, chatID, userID int64) error {
	return nil
}

func (NoopClient) Restrict(ctx context.Context, chatID, userID int64, perms PermissionSet) error {
	return nil
}
