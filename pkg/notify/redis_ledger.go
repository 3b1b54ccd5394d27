package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisLedgerPrefix = "planwarden:notify"
	defaultRedisLedgerTTL    = 45 * 24 * time.Hour
)

// Values are unix microseconds. ARGV: at, cutoff, ttl ms.
var claimScript = redis.NewScript(`
local prev = redis.call('GET', KEYS[1])
if prev and tonumber(prev) >= tonumber(ARGV[2]) then
	return {0, prev}
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return {1, prev or ''}
`)

// ARGV: claimed at, previous (may be empty), ttl ms.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
	return 0
end
if ARGV[2] == '' then
	redis.call('DEL', KEYS[1])
elseif tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// RedisLedger keeps records in Redis, one key per tenant and kind.
// Claim and Release run as Lua scripts so each is a single atomic step.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisLedgerOption configures a RedisLedger.
type RedisLedgerOption func(*RedisLedger)

// WithKeyPrefix namespaces ledger keys.
func WithKeyPrefix(prefix string) RedisLedgerOption {
	return func(l *RedisLedger) { l.prefix = prefix }
}

// WithRecordTTL sets how long a record survives; zero keeps it forever.
// It should exceed the longest re-fire interval.
func WithRecordTTL(ttl time.Duration) RedisLedgerOption {
	return func(l *RedisLedger) { l.ttl = ttl }
}

// NewRedisLedger returns a Ledger shared by every replica using client.
func NewRedisLedger(client redis.UniversalClient, opts ...RedisLedgerOption) *RedisLedger {
	l := &RedisLedger{
		client: client,
		prefix: defaultRedisLedgerPrefix,
		ttl:    defaultRedisLedgerTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLedger) key(tenantID uuid.UUID, kind Kind) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, tenantID, kind)
}

func (l *RedisLedger) LastNotifiedAt(ctx context.Context, tenantID uuid.UUID, kind Kind) (time.Time, bool, error) {
	raw, err := l.client.Get(ctx, l.key(tenantID, kind)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, errors.Join(ErrLedgerUnavailable, err)
	}
	t, err := parseMicros(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (l *RedisLedger) Claim(ctx context.Context, tenantID uuid.UUID, kind Kind, at, cutoff time.Time) (Claim, error) {
	at = at.Truncate(time.Microsecond)
	c := Claim{TenantID: tenantID, Kind: kind, At: at}

	res, err := claimScript.Run(ctx, l.client,
		[]string{l.key(tenantID, kind)},
		at.UnixMicro(), cutoff.UnixMicro(), l.ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return c, errors.Join(ErrLedgerUnavailable, err)
	}
	if len(res) != 2 {
		return c, fmt.Errorf("%w: unexpected claim reply %v", ErrLedgerUnavailable, res)
	}

	if prev, _ := res[1].(string); prev != "" {
		if c.Previous, err = parseMicros(prev); err != nil {
			return c, err
		}
	}
	granted, _ := res[0].(int64)
	c.Granted = granted == 1
	return c, nil
}

func (l *RedisLedger) Release(ctx context.Context, c Claim) error {
	if !c.Granted {
		return nil
	}

	prev := ""
	if !c.Previous.IsZero() {
		prev = strconv.FormatInt(c.Previous.UnixMicro(), 10)
	}
	err := releaseScript.Run(ctx, l.client,
		[]string{l.key(c.TenantID, c.Kind)},
		strconv.FormatInt(c.At.UnixMicro(), 10), prev, l.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return nil
}

func parseMicros(raw string) (time.Time, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed record %q", ErrLedgerUnavailable, raw)
	}
	return time.UnixMicro(n), nil
}
