package trigger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned when jobs are registered before Start()
	// or after Shutdown().
	ErrNotStarted = errors.New("trigger scheduler not started")

	// ErrDuplicateJob is returned when a key is scheduled twice without an
	// intervening Cancel. Callers are expected to never double-schedule;
	// this guards the programming error instead of corrupting the job set.
	ErrDuplicateJob = errors.New("job already scheduled")
)

// JobKey uniquely identifies one live recurring trigger: one supplement on
// one channel.
type JobKey struct {
	SuppID  int
	Channel string
}

// Name encodes the job name half of the key, e.g. "suppID_1_job".
// The encoding is stable; persisted-job inspection tooling relies on it.
func (k JobKey) Name() string { return fmt.Sprintf("suppID_%d_job", k.SuppID) }

// Group encodes the group half of the key, e.g. "email_group".
func (k JobKey) Group() string { return k.Channel + "_group" }

func (k JobKey) String() string { return k.Group() + "/" + k.Name() }

// JobInfo is a read-only snapshot of one registered trigger.
type JobInfo struct {
	Key    JobKey
	Hour   int
	Minute int
}

// Handler receives the fire-time callback with the payload that was baked in
// at registration. It runs on a scheduler-owned goroutine and must not block
// for long; dispatch work belongs in the notifier's worker pool.
type Handler func(key JobKey, payload any)

type Config struct {
	// Timezone is an IANA name (e.g. "America/New_York"). Empty means the
	// process-local zone. Fire times are evaluated against this zone.
	Timezone string
}
