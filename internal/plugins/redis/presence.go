package redis

import (
	"context"
	"sort"
	"strings"

	"assist/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

const presencePrefix = "assist:presence:"

// decrOrDelete drops one connection and removes the key once nothing is
// left, so a crashed DECR never leaves a negative counter behind.
var decrOrDelete = redis.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
	redis.call("DEL", KEYS[1])
	return 0
end
return n
`)

type RedisPresenceStore struct {
	rdb *redis.Client
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
	}
}

func (p *RedisPresenceStore) MarkOnline(ctx context.Context, channel string, role domain.Role, participantID string) (int64, error) {
	return p.rdb.Incr(ctx, presenceKey(channel, role, participantID)).Result()
}

func (p *RedisPresenceStore) MarkOffline(ctx context.Context, channel string, role domain.Role, participantID string) (int64, error) {
	return decrOrDelete.Run(ctx, p.rdb, []string{presenceKey(channel, role, participantID)}).Int64()
}

// Online scans the channel/role prefix. SCAN may return a key twice, so
// ids are de-duplicated.
func (p *RedisPresenceStore) Online(ctx context.Context, channel string, role domain.Role) ([]string, error) {
	prefix := rolePrefix(channel, role)
	seen := make(map[string]struct{})
	iter := p.rdb.Scan(ctx, 0, escapeGlob(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		seen[strings.TrimPrefix(iter.Val(), prefix)] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func rolePrefix(channel string, role domain.Role) string {
	return presencePrefix + channel + ":" + string(role) + ":"
}

func presenceKey(channel string, role domain.Role, participantID string) string {
	return rolePrefix(channel, role) + participantID
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
