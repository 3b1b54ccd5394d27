// Package redis connects to the optional Redis instance and provides the
// pieces the engine builds on it.
//
// Connect retries the initial ping within the configured timeout.
// Healthcheck adapts a client to the readiness check. Locker hands out
// named, expiring locks used to keep scheduled sweeps to one replica.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	locker := redis.NewLocker(client, cfg.KeyPrefix)
//	release, ok, err := locker.TryLock(ctx, "sweep:trial", time.Minute)
//
// Redis is optional: Config.Enabled is false when REDIS_URL is empty and
// callers fall back to Postgres-only operation.
package redis
