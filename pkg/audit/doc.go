// Package audit records lifecycle decisions as structured events.
//
// Components depend on the Sink interface. Logger implements it over a
// Storage backend:
//
//	sink := audit.NewLogger(audit.NewSlogStorage(log),
//	    audit.WithTenantIDExtractor(tenant.IDStringFromContext),
//	)
//	_ = sink.Log(ctx, audit.ActionTrialCreated,
//	    audit.WithResource("subscription", sub.ID.String()),
//	)
//
// Available storages: MemoryStorage (tests), SlogStorage (log pipeline) and
// PostgresStorage (audit_events table). Wrap a BatchStorage in an AsyncWriter
// to move writes off the request path; close it on shutdown to flush.
//
// Audit writes never change a decision: callers log a failed write and move on.
package audit
