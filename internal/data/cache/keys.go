// Package cache holds the Redis-backed session, message and memo stores.
// Everything in here is a passive byte store: entities arrive already
// validated, keys and indices are assigned upstream, and eviction is plain
// TTL expiry. Absence after expiry is indistinguishable from "never
// existed" on purpose; the cache-aside layer falls back to Postgres.
package cache

import "time"

const (
	// DefaultKeyPrefix namespaces every conversation key in Redis.
	DefaultKeyPrefix = "luma:conv:"

	sessionKeyspace = "session:"
	messageKeyspace = "msgs:"
	memoKeyspace    = "memo:"

	// DefaultTTL applies to all three keyspaces unless overridden per store.
	DefaultTTL = 7 * 24 * time.Hour
)

// Options configures one cache store instance.
type Options struct {
	KeyPrefix string
	TTL       time.Duration
}

func (o Options) withDefaults() Options {
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultKeyPrefix
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	return o
}

func sessionKey(prefix, id string) string { return prefix + sessionKeyspace + id }
func messageKey(prefix, id string) string { return prefix + messageKeyspace + id }
func memoKey(prefix, id string) string    { return prefix + memoKeyspace + id }
