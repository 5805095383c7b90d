// Package shutdown coordinates graceful process termination.
//
// A Handler cancels its context on SIGINT or SIGTERM (or Trigger), then
// runs the registered hooks in reverse registration order under a shared
// timeout. savekeepd registers the final save as a hook so it runs before
// storage is closed.
package shutdown
