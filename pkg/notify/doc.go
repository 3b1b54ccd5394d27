// Package notify sends trial-ending and renewal reminders.
//
// TrialScheduler and RenewalScheduler share one shape: ScanAndNotify sweeps
// every candidate subscription and returns a SweepResult, and CheckAndNotify
// runs the same decision for one tenant on demand. A failure for one tenant
// is counted in the result and never stops the sweep.
//
// Whether a send may happen is decided by a Gate and recorded in a Ledger.
// Ledger.Claim is a single atomic step, so a sweep and an on-demand check
// racing for the same tenant send at most one message per window. Ledgers are
// provided for memory, PostgreSQL (the notification_log table) and Redis.
//
// Trial windows, by total trial length:
//
//	short (< 2h): final warning at <= 5m remaining, once per window
//	long:         early warning in (1h, 24h], re-fire after 12h
//	              final warning at <= 1h, re-fire after 30m
//
// The renewal reminder goes out on the calendar day the current period ends.
// A delivered reminder calls MarkRenewalNotified, moving the subscription into
// pending renewal.
package notify
