// Package lock guards concurrent redemption applies for the same loyalty
// account across terminals. The lock only reduces compare-and-swap
// contention; the conditional balance update in the repository remains the
// correctness mechanism, so a missing redis client degrades gracefully.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const keyPrefix = "loyalty:redeem:"

type RedemptionLock struct {
	client *redis.Client
	script *redis.Script
}

func NewRedemptionLock(client *redis.Client) *RedemptionLock {
	if client == nil {
		return nil
	}
	return &RedemptionLock{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

// TryAcquire takes a short-lived lock on the account. A nil lock (redis
// not configured) always succeeds with an empty token.
func (l *RedemptionLock) TryAcquire(ctx context.Context, accountID snowflake.ID, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+accountID.String(), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release drops the lock only if the token still owns it.
func (l *RedemptionLock) Release(ctx context.Context, accountID snowflake.ID, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{keyPrefix + accountID.String()}, token).Err()
}
