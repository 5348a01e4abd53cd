package cron

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

// FuzzJobSchedule feeds arbitrary expressions through the schedule
// override of the maintenance jobs. Start must reject bad expressions with
// an error and list good ones under the job name.
func FuzzJobSchedule(f *testing.F) {
	for _, seed := range []string{
		"* * * * *",
		"*/10 * * * *",
		"0 3 * * 1",
		"@every 90s",
		"@hourly",
		"60 * * * *",
		"0 25 * * *",
		"* * * *",
		"",
		"invalid",
	} {
		f.Add(seed)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f.Fuzz(func(t *testing.T, expr string) {
		s := NewScheduler(logger)
		job := &AdminCachePruneJob{ScheduleExpr: expr}
		if err := s.RegisterJob(job); err != nil {
			t.Fatalf("RegisterJob: %v", err)
		}
		err := s.Start()
		defer func() { _ = s.Stop(context.Background()) }()
		if err != nil {
			return
		}
		entries := s.Entries()
		if len(entries) != 1 || entries[0].Name != job.Name() {
			t.Fatalf("Entries() = %v after accepting %q", entries, expr)
		}
	})
}

// FuzzScheduleOnceName checks that any challenge key round-trips through
// the one-shot bookkeeping.
func FuzzScheduleOnceName(f *testing.F) {
	f.Add("verify:-1001234567890:42")
	f.Add("")
	f.Add("verify:\x00:\xff")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f.Fuzz(func(t *testing.T, name string) {
		s := NewScheduler(logger)
		defer func() { _ = s.Stop(context.Background()) }()

		s.ScheduleOnce(name, time.Hour, func(context.Context) {})
		cancel := s.ScheduleOnce(name, time.Hour, func(context.Context) {})
		if n := s.PendingOnce(); n != 1 {
			t.Fatalf("PendingOnce() = %d after rescheduling %q", n, name)
		}
		cancel()
		if n := s.PendingOnce(); n != 0 {
			t.Fatalf("PendingOnce() = %d after cancel", n)
		}
	})
}
