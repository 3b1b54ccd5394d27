// Package schedule runs the engine's periodic sweeps.
//
// A Runner holds named jobs, each with its own Schedule (Every, HourlyAt,
// DailyAt, or Parse for config strings). Jobs never overlap within a
// process; with WithLocker they also never overlap across replicas, and a
// replica that finds the lock held skips that tick.
//
//	r := schedule.NewRunner(schedule.WithLocker(redis.NewLocker(client, "planwarden"), time.Minute))
//	_ = r.Add("trial", schedule.Every(time.Minute), sweepTrials)
//	go r.Run(ctx)
//
// RunNow triggers a job on demand under the same locks.
package schedule
