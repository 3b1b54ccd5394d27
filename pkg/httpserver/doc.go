// Package httpserver runs the engine's HTTP surface: webhook receivers,
// internal sweep triggers and health checks.
//
// Server wraps http.Server with shutdown driven by the Run context. Shutdown
// funcs run after the listener drains, so buffered writers can flush inside
// the same deadline.
//
//	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log), httpserver.WithShutdownFunc(flush))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// LivenessHandler and ReadinessHandler back /healthz and /readyz. Readiness
// checks run concurrently and report per-dependency status as JSON.
package httpserver
