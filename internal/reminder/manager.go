// Package reminder reconciles supplement records and user preferences with
// the trigger scheduler's live job set. It is the only component that knows
// when a reminder is live: the supplement's own channel flag, the global
// channel enable flag, and a verified contact must all be true.
package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"vitaremind/internal/domain"
	"vitaremind/internal/prefs"
	"vitaremind/internal/trigger"
)

// SubjectStore is the read path for bulk reconciliation. The manager keeps
// no copy of supplement data; it re-reads on every bulk call.
type SubjectStore interface {
	SupplementsWithReminders(ctx context.Context) ([]domain.Supplement, error)
}

// PreferenceStore reads the process-wide reminder preferences. Missing keys
// are false / empty; a failed read is an error and aborts the operation
// that needed it.
type PreferenceStore interface {
	Bool(ctx context.Context, key string) (bool, error)
	String(ctx context.Context, key string) (string, error)
}

type Manager struct {
	log   zerolog.Logger
	sched *trigger.Scheduler
	store SubjectStore
	prefs PreferenceStore
}

func NewManager(sched *trigger.Scheduler, store SubjectStore, pstore PreferenceStore, log zerolog.Logger) *Manager {
	return &Manager{
		log:   log,
		sched: sched,
		store: store,
		prefs: pstore,
	}
}

// Startup loads every persisted reminder whose channel is globally enabled
// and verified. Called exactly once at process start, before any UI-layer
// calls arrive. Per-channel failures are collected, not fatal: one broken
// channel must not keep the others dark.
func (m *Manager) Startup(ctx context.Context) error {
	m.log.Info().Msg("loading startup reminders")
	var errs []error
	for _, ch := range domain.Channels() {
		live, err := m.channelLive(ctx, ch)
		if err != nil {
			errs = append(errs, fmt.Errorf("startup %s: %w", ch, err))
			continue
		}
		if !live {
			continue
		}
		if err := m.LoadAll(ctx, ch); err != nil {
			errs = append(errs, fmt.Errorf("startup %s: %w", ch, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.log.Info().Msg("startup reminders loaded")
	return nil
}

// LoadAll re-registers every eligible reminder for one channel. Every read
// the operation depends on — the subject store, the channel's preference
// flags, the destination — happens before anything observable changes, so a
// store failure aborts with the previous job set intact; only then is the
// channel's existing group cancelled, which keeps the operation idempotent
// and the job set free of duplicate keys. Registration failures on
// individual supplements are warnings and do not stop the loop.
func (m *Manager) LoadAll(ctx context.Context, ch domain.Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("unknown channel %q", ch)
	}

	supps, err := m.store.SupplementsWithReminders(ctx)
	if err != nil {
		return fmt.Errorf("fetch reminders: %w", err)
	}
	live, err := m.channelLive(ctx, ch)
	if err != nil {
		return err
	}
	var dest string
	if live {
		if dest, err = m.destination(ctx, ch); err != nil {
			return err
		}
	}

	m.sched.CancelGroup(trigger.JobKey{Channel: string(ch)}.Group())

	if !live {
		m.log.Info().Str("channel", ch.String()).Int("loaded", 0).Msg("reminders loaded")
		return nil
	}

	loaded := 0
	for _, supp := range supps {
		if !supp.ChannelEnabled(ch) {
			continue
		}
		if err := m.schedule(supp, ch, dest); err != nil {
			m.log.Warn().Int("supp_id", supp.ID).Str("channel", ch.String()).Err(err).
				Msg("could not schedule reminder")
			continue
		}
		loaded++
	}
	m.log.Info().Str("channel", ch.String()).Int("loaded", loaded).Msg("reminders loaded")
	return nil
}

// LoadOne registers a single supplement's reminder, applying the same
// activation predicate as LoadAll. The UI layer calls this after a create or
// edit to avoid an O(n) rescan. A supplement that fails the predicate is
// silently skipped, not an error.
func (m *Manager) LoadOne(ctx context.Context, supp domain.Supplement, ch domain.Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("unknown channel %q", ch)
	}
	if !supp.ChannelEnabled(ch) {
		return nil
	}
	live, err := m.channelLive(ctx, ch)
	if err != nil {
		return err
	}
	if !live {
		return nil
	}
	dest, err := m.destination(ctx, ch)
	if err != nil {
		return err
	}
	return m.schedule(supp, ch, dest)
}

// UnloadOne cancels the supplement's job on one channel if present. Used on
// delete and on a per-supplement flag flip to off. Idempotent.
func (m *Manager) UnloadOne(suppID int, ch domain.Channel) bool {
	return m.sched.Cancel(trigger.JobKey{SuppID: suppID, Channel: string(ch)})
}

// UnloadAllActive cancels every live job for one channel. Used when the
// channel is globally disabled. Returns the number of jobs removed.
func (m *Manager) UnloadAllActive(ch domain.Channel) int {
	return m.sched.CancelGroup(trigger.JobKey{Channel: string(ch)}.Group())
}

// Shutdown stops the scheduler without waiting on in-flight fires. Called
// once at process exit, after the final persistence commit.
func (m *Manager) Shutdown() {
	m.sched.Shutdown(false)
}

func (m *Manager) schedule(supp domain.Supplement, ch domain.Channel, dest string) error {
	payload, err := composePayload(supp, ch, dest)
	if err != nil {
		return err
	}
	key := trigger.JobKey{SuppID: supp.ID, Channel: string(ch)}
	return m.sched.ScheduleDaily(key, supp.Time.Hour, supp.Time.Minute, payload)
}

// channelLive is the global half of the activation predicate: channel
// enabled AND its contact verified. Evaluated once per reconciliation call,
// never per supplement.
func (m *Manager) channelLive(ctx context.Context, ch domain.Channel) (bool, error) {
	var enabledKey, verifiedKey string
	switch ch {
	case domain.ChannelEmail:
		enabledKey, verifiedKey = prefs.KeyEmailRemindersEnabled, prefs.KeyEmailVerified
	case domain.ChannelText:
		enabledKey, verifiedKey = prefs.KeyTextRemindersEnabled, prefs.KeyPhoneVerified
	case domain.ChannelVoice:
		enabledKey, verifiedKey = prefs.KeyVoiceRemindersEnabled, prefs.KeyPhoneVerified
	default:
		return false, nil
	}

	enabled, err := m.prefs.Bool(ctx, enabledKey)
	if err != nil || !enabled {
		return false, err
	}
	return m.prefs.Bool(ctx, verifiedKey)
}

// destination resolves the channel's contact address from preferences.
func (m *Manager) destination(ctx context.Context, ch domain.Channel) (string, error) {
	if ch == domain.ChannelEmail {
		return m.prefs.String(ctx, prefs.KeyEmailAddress)
	}
	return m.prefs.String(ctx, prefs.KeyPhoneNumber)
}
