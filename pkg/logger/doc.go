// Package logger builds *slog.Logger instances for planwarden components.
//
// New applies functional options (format, level, static attributes, context
// extractors). Extractors pull request-scoped values such as the tenant id
// out of context.Context on every record, unless the record already carries
// that key.
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "planwarden"),
//	    logger.WithContextExtractors(tenant.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "renewal reminder sent", logger.TenantID(id), logger.Kind("renewal"))
//
// Attribute helpers in attr.go keep key names consistent across packages.
// Error returns an empty attribute for a nil error, so it can be passed
// unconditionally.
package logger
