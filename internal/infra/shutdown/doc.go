// Package shutdown coordinates graceful process termination.
//
// Hooks registered with OnShutdown run in reverse order of registration
// once SIGINT or SIGTERM arrives, the parent context ends, or Trigger is
// called. All hooks share one deadline.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("redis server", srv.Shutdown)
//	return h.Wait(ctx)
package shutdown
