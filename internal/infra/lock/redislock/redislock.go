package redislock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rentals/internal/app/uow"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a lease-based lock shared by every process talking to the same
// Redis. TTL bounds how long a crashed holder can keep a listing locked.
type Locker struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
	Poll   time.Duration
}

func New(client redis.UniversalClient, ttl time.Duration) *Locker {
	return &Locker{Client: client, Prefix: "rentals:lock:listing:", TTL: ttl, Poll: 25 * time.Millisecond}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.Client == nil {
		return nil, errors.New("redislock: client required")
	}
	redisKey := l.Prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(l.poll())
	defer ticker.Stop()
	for {
		ok, err := l.Client.SetNX(ctx, redisKey, token, l.ttl()).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			return func() {
				// The caller's context may already be gone at release time.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.Client, []string{redisKey}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) ttl() time.Duration {
	if l.TTL <= 0 {
		return 30 * time.Second
	}
	return l.TTL
}

func (l *Locker) poll() time.Duration {
	if l.Poll <= 0 {
		return 25 * time.Millisecond
	}
	return l.Poll
}

var _ uow.ListingLocker = (*Locker)(nil)
