package redis

import "strings"

// Every key lives under "srms:<family>:"; blank parts are dropped.
const keyNamespace = "srms"

const (
	familyCache       = "cache"
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familyLock        = "lock"
)

func key(family string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(family)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// CacheKey returns the key of one entry in a named cache.
func (c *Client) CacheKey(cache, entry string) string { return key(familyCache, cache, entry) }

// CachePrefix returns the prefix shared by every entry of a named cache.
func (c *Client) CachePrefix(cache string) string { return key(familyCache, cache) + ":" }

func (c *Client) IdempotencyKey(scope, id string) string { return key(familyIdempotency, scope, id) }

func (c *Client) RateLimitKey(scope string) string { return key(familyRateLimit, scope) }

func (c *Client) LockKey(scope, id string) string { return key(familyLock, scope, id) }
