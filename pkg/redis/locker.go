package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another replica is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived named locks so that only one replica runs a
// sweep at a time.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// NewLocker returns a Locker storing keys under prefix + ":lock:".
func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	if prefix == "" {
		prefix = "planwarden"
	}
	return &Locker{client: client, prefix: prefix + ":lock:"}
}

// TryLock acquires name for ttl. It returns ok=false without error when
// another holder has it. The returned release func is safe to call after
// the lock expired.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		n, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}
	return release, true, nil
}

// IsLockNotHeld reports whether err means the lock had already expired.
func IsLockNotHeld(err error) bool {
	return errors.Is(err, ErrLockNotHeld)
}
