// Package tenant exposes tenant profiles: the recipient email for lifecycle
// notifications and the role used for the super-admin bypass.
//
// Profiles come from a Store (MemoryStore, PostgresStore, or CachedStore in
// front of either). Middleware resolves the tenant id from a request and puts
// the profile in the context, where IDFromContext and LoggerExtractor read it.
package tenant
