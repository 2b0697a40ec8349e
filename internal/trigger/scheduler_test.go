package trigger

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(Config{}, zerolog.Nop(), nil)
	s.Start()
	t.Cleanup(func() { s.Shutdown(false) })
	return s
}

func TestJobKeyEncoding(t *testing.T) {
	t.Parallel()
	k := JobKey{SuppID: 1, Channel: "email"}
	if k.Name() != "suppID_1_job" {
		t.Errorf("Name = %q", k.Name())
	}
	if k.Group() != "email_group" {
		t.Errorf("Group = %q", k.Group())
	}
}

func TestScheduleBeforeStart(t *testing.T) {
	t.Parallel()
	s := New(Config{}, zerolog.Nop(), nil)
	err := s.ScheduleDaily(JobKey{SuppID: 1, Channel: "email"}, 8, 0, nil)
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestDuplicateKeyRejected(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	key := JobKey{SuppID: 1, Channel: "email"}
	if err := s.ScheduleDaily(key, 8, 0, nil); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	err := s.ScheduleDaily(key, 9, 0, nil)
	if !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
	// The failed registration must not disturb the original.
	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].Hour != 8 {
		t.Fatalf("job set corrupted: %+v", jobs)
	}
}

func TestInvalidFireTime(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	if err := s.ScheduleDaily(JobKey{SuppID: 1, Channel: "email"}, 24, 0, nil); err == nil {
		t.Fatal("expected error for hour 24")
	}
	if err := s.ScheduleDaily(JobKey{SuppID: 1, Channel: "email"}, 8, 60, nil); err == nil {
		t.Fatal("expected error for minute 60")
	}
}

func TestCancelIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	key := JobKey{SuppID: 5, Channel: "text"}
	if s.Cancel(key) {
		t.Fatal("cancel of absent key should report false")
	}
	if err := s.ScheduleDaily(key, 8, 0, nil); err != nil {
		t.Fatal(err)
	}
	if !s.Cancel(key) {
		t.Fatal("cancel of present key should report true")
	}
	if s.Cancel(key) {
		t.Fatal("second cancel should report false")
	}
	if len(s.Jobs()) != 0 {
		t.Fatal("job set should be empty")
	}
}

func TestCancelGroup(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	for id := 1; id <= 3; id++ {
		if err := s.ScheduleDaily(JobKey{SuppID: id, Channel: "email"}, 8, 0, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.ScheduleDaily(JobKey{SuppID: 1, Channel: "voice"}, 8, 0, nil); err != nil {
		t.Fatal(err)
	}

	if n := s.CancelGroup("email_group"); n != 3 {
		t.Fatalf("expected 3 removed, got %d", n)
	}
	if got := s.JobsInGroup("email_group"); len(got) != 0 {
		t.Fatalf("email group not empty: %+v", got)
	}
	if got := s.JobsInGroup("voice_group"); len(got) != 1 {
		t.Fatalf("voice group should be untouched: %+v", got)
	}
}

func TestJobsSnapshotOrdered(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	keys := []JobKey{
		{SuppID: 2, Channel: "voice"},
		{SuppID: 9, Channel: "email"},
		{SuppID: 1, Channel: "email"},
	}
	for _, k := range keys {
		if err := s.ScheduleDaily(k, 6, 15, nil); err != nil {
			t.Fatal(err)
		}
	}
	jobs := s.Jobs()
	want := []JobKey{
		{SuppID: 1, Channel: "email"},
		{SuppID: 9, Channel: "email"},
		{SuppID: 2, Channel: "voice"},
	}
	if len(jobs) != len(want) {
		t.Fatalf("got %d jobs, want %d", len(jobs), len(want))
	}
	for i, k := range want {
		if jobs[i].Key != k {
			t.Errorf("jobs[%d].Key = %+v, want %+v", i, jobs[i].Key, k)
		}
	}
	if jobs[0].Hour != 6 || jobs[0].Minute != 15 {
		t.Errorf("fire time not preserved: %+v", jobs[0])
	}
}

func TestShutdownRejectsNewJobs(t *testing.T) {
	t.Parallel()
	s := New(Config{}, zerolog.Nop(), nil)
	s.Start()
	if err := s.ScheduleDaily(JobKey{SuppID: 1, Channel: "email"}, 8, 0, nil); err != nil {
		t.Fatal(err)
	}
	s.Shutdown(false)
	err := s.ScheduleDaily(JobKey{SuppID: 2, Channel: "email"}, 8, 0, nil)
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted after shutdown, got %v", err)
	}
	if len(s.Jobs()) != 0 {
		t.Fatal("job set should be cleared on shutdown")
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	s.Start()
	if !s.Started() {
		t.Fatal("scheduler should be running")
	}
}

func TestInvalidTimezoneFallsBack(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "Not/AZone"}, zerolog.Nop(), nil)
	s.Start()
	defer s.Shutdown(false)
	if err := s.ScheduleDaily(JobKey{SuppID: 1, Channel: "email"}, 8, 0, nil); err != nil {
		t.Fatalf("scheduler should work with fallback zone: %v", err)
	}
}
