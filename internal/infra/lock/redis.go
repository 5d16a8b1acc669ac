package lock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/metrics"
)

const keyPrefix = "sync:account:"

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу токена.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis реализует domain.AccountLocker поверх SET NX PX.
// Используется, когда бот и планировщик работают в разных процессах.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.AccountLocker = (*Redis)(nil)

// NewRedis создаёт блокировку. TTL ограничивает время жизни ключа при падении владельца.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

// TryLock захватывает аккаунт без ожидания.
func (r *Redis) TryLock(ctx context.Context, accountID int64) (func(), error) {
	key := keyPrefix + strconv.FormatInt(accountID, 10)
	token := uuid.NewString()

	start := time.Now()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	metrics.ObserveNetworkRequest("redis", "lock_acquire", "account_lock", start, err)
	if err != nil {
		return nil, fmt.Errorf("lock account %d: %w", accountID, err)
	}
	if !ok {
		return nil, domain.ErrAccountBusy
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		start := time.Now()
		err := releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
		metrics.ObserveNetworkRequest("redis", "lock_release", "account_lock", start, err)
	}, nil
}
