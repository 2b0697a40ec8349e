// Package trigger maintains the set of named recurring daily triggers and
// invokes a registered handler at each one's fire time. It runs on its own
// timing goroutine, decoupled from callers. If the process is down at a
// scheduled instant the occurrence is simply missed; there is no backfill.
package trigger

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler holds the live job set. All mutations are atomic with respect to
// each other; the mutex is internal and never exposed to callers.
type Scheduler struct {
	mu sync.Mutex

	log     zerolog.Logger
	handler Handler
	parser  cron.Parser
	loc     *time.Location

	c    *cron.Cron
	jobs map[JobKey]*jobEntry
}

type jobEntry struct {
	id      cron.EntryID
	hour    int
	minute  int
	payload any
}

func New(cfg Config, log zerolog.Logger, handler Handler) *Scheduler {
	return &Scheduler{
		log:     log,
		handler: handler,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		loc:     loadLocation(cfg.Timezone, log),
		jobs:    map[JobKey]*jobEntry{},
	}
}

func loadLocation(tz string, log zerolog.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn().Str("tz", tz).Err(err).Msg("invalid timezone, falling back to local")
		return time.Local
	}
	return loc
}

// Start begins the scheduling loop. Calling Start on a running scheduler is
// a no-op. Must be called before any registration.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	s.c.Start()
	s.log.Info().Str("tz", s.loc.String()).Msg("trigger scheduler started")
}

// Started reports whether the scheduling loop is running.
func (s *Scheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}

// ScheduleDaily registers a trigger that fires once per day at hour:minute
// local time. The payload is opaque to the scheduler and handed back to the
// handler verbatim at fire time.
func (s *Scheduler) ScheduleDaily(key JobKey, hour, minute int, payload any) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid fire time %02d:%02d for %s", hour, minute, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return ErrNotStarted
	}
	if _, ok := s.jobs[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, key)
	}

	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	id, err := s.c.AddFunc(spec, func() { s.fire(key, payload) })
	if err != nil {
		return fmt.Errorf("register %s: %w", key, err)
	}
	s.jobs[key] = &jobEntry{id: id, hour: hour, minute: minute, payload: payload}
	s.log.Debug().Str("job", key.String()).Str("spec", spec).Msg("trigger registered")
	return nil
}

// fire runs on a cron-owned goroutine, never on the timing thread.
func (s *Scheduler) fire(key JobKey, payload any) {
	if s.handler == nil {
		return
	}
	s.log.Debug().Str("job", key.String()).Msg("trigger fired")
	s.handler(key, payload)
}

// Cancel removes the trigger and cancels any future fires. Canceling an
// absent key is a no-op; the return value reports whether a job was removed.
// A fire that has already started dispatching is not interrupted.
func (s *Scheduler) Cancel(key JobKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[key]
	if !ok {
		return false
	}
	if s.c != nil {
		s.c.Remove(e.id)
	}
	delete(s.jobs, key)
	s.log.Debug().Str("job", key.String()).Msg("trigger canceled")
	return true
}

// CancelGroup removes every job in the given group (e.g. "email_group") and
// returns how many were removed.
func (s *Scheduler) CancelGroup(group string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, e := range s.jobs {
		if key.Group() != group {
			continue
		}
		if s.c != nil {
			s.c.Remove(e.id)
		}
		delete(s.jobs, key)
		n++
	}
	if n > 0 {
		s.log.Debug().Str("group", group).Int("removed", n).Msg("trigger group canceled")
	}
	return n
}

// Jobs returns a snapshot of every registered trigger, ordered by group then
// supplement ID.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for key, e := range s.jobs {
		out = append(out, JobInfo{Key: key, Hour: e.hour, Minute: e.minute})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Channel != out[j].Key.Channel {
			return out[i].Key.Channel < out[j].Key.Channel
		}
		return out[i].Key.SuppID < out[j].Key.SuppID
	})
	return out
}

// JobsInGroup returns the snapshot filtered to one group.
func (s *Scheduler) JobsInGroup(group string) []JobInfo {
	all := s.Jobs()
	out := all[:0:0]
	for _, j := range all {
		if j.Key.Group() == group {
			out = append(out, j)
		}
	}
	return out
}

// Shutdown stops the scheduling loop. With wait=false (the only mode the
// application uses) in-flight fires are abandoned rather than awaited, which
// is safe because dispatch is itself fire-and-forget. After Shutdown,
// registrations fail with ErrNotStarted.
func (s *Scheduler) Shutdown(wait bool) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.jobs = map[JobKey]*jobEntry{}
	s.mu.Unlock()

	if c == nil {
		return
	}
	ctx := c.Stop()
	if wait {
		<-ctx.Done()
	}
	s.log.Info().Bool("waited", wait).Msg("trigger scheduler stopped")
}
