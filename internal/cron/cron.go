// Package cron runs gatekeep's maintenance jobs (expiring stale
// verification challenges, pruning the admin cache) and the one-shot
// timers behind verification timeouts.
package cron

import "context"

// Job is a maintenance task run on a five-field cron schedule. The
// scheduler never runs two ticks of the same job at once; a tick that
// finds the previous one still running is skipped.
type Job interface {
	// Name identifies the job in logs and in GET /api/jobs. It must be
	// unique within a scheduler.
	Name() string
	Schedule() string
	// Run gets a context that is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}
