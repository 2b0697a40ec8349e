// Package prefs is the process-wide preference store: a key/value table in
// the application database. It replaces a hidden global accessor with an
// injected dependency so callers can substitute test doubles.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Fixed preference keys. Missing keys read as false / empty string.
const (
	KeyEmailRemindersEnabled = "EMAIL_REMINDERS_ENABLED"
	KeyTextRemindersEnabled  = "TEXT_REMINDERS_ENABLED"
	KeyVoiceRemindersEnabled = "VOICE_REMINDERS_ENABLED"
	KeyEmailVerified         = "EMAIL_VERIFIED"
	KeyPhoneVerified         = "PHONE_VERIFIED"
	KeyEmailAddress          = "EMAIL_ADDRESS"
	KeyPhoneNumber           = "PHONE_NUMBER"
)

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// String returns the stored value; an absent key is "" with no error. A
// failed read is an error, not a default: preference reads gate
// reconciliation, and a broken store must abort the caller rather than
// masquerade as "disabled".
func (s *Store) String(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		s.log.Warn().Str("key", key).Err(err).Msg("preference read failed")
		return "", fmt.Errorf("read preference %s: %w", key, err)
	}
	return v, nil
}

// Bool returns the stored flag; absent keys are false.
func (s *Store) Bool(ctx context.Context, key string) (bool, error) {
	v, err := s.String(ctx, key)
	return v == "true", err
}

func (s *Store) SetString(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs (key, value) VALUES (?,?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	v := "false"
	if value {
		v = "true"
	}
	return s.SetString(ctx, key, v)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM prefs WHERE key = ?`, key)
	return err
}
