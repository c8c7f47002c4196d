package warden

import (
	"errors"

	"github.com/chatwarden/warden/admincache"
	"github.com/chatwarden/warden/warns"
)

// ErrInsufficientRights is reported by ChatClient implementations when the
// bot lacks the administrative right an action needs. Recoverable: the caller
// is told, nothing is retried, and any warning already persisted stays.
var ErrInsufficientRights = errors.New("insufficient rights for chat action")

// Re-exported so engine callers don't need to import the subpackages to
// classify failures.
var (
	ErrThrottled  = admincache.ErrThrottled
	ErrNoWarnings = warns.ErrNoWarnings
)
