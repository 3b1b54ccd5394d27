// Package access turns a tenant's subscription, plan and usage into
// allow/deny decisions.
//
// Evaluator.CheckAccess never returns an error. The order of checks is:
//
//  1. the configured super-admin is always allowed;
//  2. a tenant without a row gets a trial provisioned, once, even under
//     concurrent requests;
//  3. trials are always allowed and prompted to upgrade once expired;
//  4. expired and inactive (past due) subscriptions are denied;
//  5. active and pending subscriptions are allowed.
//
// When the subscription store fails, or no usable row exists after
// provisioning, access is allowed with Basis BasisDegraded or
// BasisUnprovisioned and an access.fail_open audit event.
//
// Evaluator.CheckResource layers plan limits on top for record creation and
// reports the current count and cap. A failed count is treated as zero.
// Evaluator.HasFeature fails closed.
//
// Middleware and RequireResource expose the same checks as net/http
// middleware responding 402 Payment Required.
package access
