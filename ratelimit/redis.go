package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript bumps the counter and arms the window expiry in one step. A key
// left without a TTL (PTTL -1) is re-armed so it can never pin a client.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Redis counts hits in a shared fixed window so every instance sees the
// same budget.
type Redis struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
}

// NewRedis stores counters under "<prefix>:<key>". A trailing colon on
// prefix is dropped.
func NewRedis(client redis.Scripter, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: strings.TrimSuffix(prefix, ":"), limit: limit, window: window}
}

func (l *Redis) key(key string) string {
	return l.prefix + ":" + key
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	count, err := hitScript.Run(ctx, l.client, []string{l.key(key)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= int64(l.limit), nil
}
