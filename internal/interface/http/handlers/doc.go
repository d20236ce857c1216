// Package handlers contains reusable HTTP building blocks: health checks
// and middleware.
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(pool))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("Health check failed: %s", status.Message)
//	}
//
// # Authentication
//
// APIKeyAuth accepts keys whose bcrypt hash is configured. Keys are read from
// the X-API-Key header or an Authorization: Bearer header:
//
//	auth, err := handlers.NewAPIKeyAuth("X-API-Key", cfg.HTTP.APIKeyHashes)
//	mux.Handle("/api/", auth.Middleware(api))
package handlers
