package redis

import (
	"context"
	"fmt"
	"time"
)

const scanBatch = 500

// FixedWindowAllow counts one hit against scope. The first hit of a window
// starts its expiry; once limit is passed the time left in the window is
// returned for Retry-After.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, time.Duration, error) {
	if err := c.ready(); err != nil {
		return false, 0, err
	}
	k := c.RateLimitKey(scope)
	hits, err := c.cmd.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("count %s: %w", k, err)
	}
	if hits == 1 && window > 0 {
		if err := c.cmd.Expire(ctx, k, window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire %s: %w", k, err)
		}
	}
	if hits <= limit {
		return true, 0, nil
	}
	left, err := c.cmd.TTL(ctx, k).Result()
	switch {
	case err != nil:
		left = window
	case left == -1 && window > 0:
		// the counter has no deadline, so the Expire of its first hit was lost
		if err := c.cmd.Expire(ctx, k, window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire %s: %w", k, err)
		}
		left = window
	case left <= 0:
		left = window
	}
	return false, left, nil
}

// DeleteByPrefix walks the keyspace with SCAN and deletes every match page by
// page, never issuing KEYS.
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	pattern := prefix + "*"
	var removed int64
	cursor := uint64(0)
	for {
		page, next, err := c.cmd.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(page) > 0 {
			n, err := c.cmd.Del(ctx, page...).Result()
			removed += n
			if err != nil {
				return removed, fmt.Errorf("delete %d keys: %w", len(page), err)
			}
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
