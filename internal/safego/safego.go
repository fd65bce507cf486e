// Package safego launches background goroutines that must never take the
// process down. Corebase hangs fire-and-forget work off the request path
// (audit writes) and runs long-lived jobs (the OAuth state sweeper) through
// it; a panic in either is absorbed and logged under the job's name.
package safego

import "log/slog"

// Go runs fn in a new goroutine, recovering and logging any panic. The name
// identifies the work in the log line so a recurring panic can be traced back
// to its job.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background goroutine panicked", "job", name, "panic", r)
			}
		}()
		fn()
	}()
}
