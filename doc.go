// Moderation automation core for group-messaging platforms.
//
// This package (`github.com/chatwarden/warden`) decides, for every inbound
// message or membership change, whether the sender is exempt from moderation,
// whether the text trips the chat's blacklist, and whether accumulated
// warnings should escalate into a kick, ban, or mute. Privilege lookups are
// served from a TTL-bounded admin roster cache with throttled manual reloads.
// Persistence and the wire-level messaging client are external collaborators
// behind small interfaces.
//
// See `cmd/warden` for a daemon built on this package.
package warden
