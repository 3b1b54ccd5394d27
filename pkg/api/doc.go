// Package api mounts the engine's HTTP surface on a chi router: payment
// processor webhooks, health checks, metrics and the token-guarded /internal
// routes that expose access decisions, usage, on-demand notifications,
// manual sweeps and renewal approval.
package api
