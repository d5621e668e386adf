// Real-time moderation and punishment escalation for multi-tenant chat.
//
// This package (`github.com/wardenchat/warden/automod`) re-exports the public surface of the moderation engine. Every incoming chat message is checked against a fixed sequence of detectors (rate spam, duplicate spam, profanity, suspicious links, excessive caps); the first detector to fire decides the violation. Each violation bumps the author's per-tenant violation count, which maps to a punishment tier (warn, mute, kick, ban). Punishments are applied through a platform interface, degrading to a lesser tier when the bot lacks the privilege for the requested one, and every step is sent to an audit sink.
//
// Per-author state (recent messages and violation counts) is kept in memory with bounded size and periodic time-based eviction; see the `history` package. Tenant settings come from the `config` package, backed by a pluggable `configstore`.
//
// See `cmd/warden` for a daemon built on this package.
package automod
