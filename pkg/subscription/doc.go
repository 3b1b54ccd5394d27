// Package subscription stores each tenant's single subscription row and
// derives its lifecycle state.
//
// The Repository is the only writer. It provisions trials, applies
// payment-processor changes through Upsert, and records renewal reminders
// and approvals. Upsert converges on one row per tenant and one row per
// external subscription id even when webhooks race: a colliding external id
// is reassigned to the tenant named by the latest event.
//
// Lifecycle is read-only. It turns a stored row and the current instant into
// an Info value:
//
//	lc := subscription.NewLifecycle()
//	info := lc.Resolve(row, time.Now())
//	if info.IsActive || info.IsPending {
//		// usable
//	}
//
// Expired and canceled rows older than one calendar month are stale and
// resolve as if no row existed.
//
// Stores are provided for PostgreSQL (PostgresStore) and memory
// (MemoryStore). Webhooks from Paddle and Stripe are verified by
// PaddleProvider and StripeProvider and applied by WebhookHandler, which
// ignores events older than the last one applied to the row.
package subscription
