package store

import (
	"context"
	"fmt"
	"strings"

	"vitaremind/internal/domain"
)

const suppColumns = `supp_id, regimen_id, supp_name, supp_amount, supp_units, supp_time,
	email_enabled, text_enabled, voice_enabled, supp_notes`

// SupplementPatch is a typed partial update: nil fields are left untouched.
type SupplementPatch struct {
	RegimenID    *int
	Name         *string
	Amount       *float64
	Units        *string
	Time         *domain.TimeOfDay
	EmailEnabled *bool
	TextEnabled  *bool
	VoiceEnabled *bool
	Notes        *string
}

// Supplements returns every supplement in the given regimen.
func (s *Store) Supplements(ctx context.Context, regimenID int) ([]domain.Supplement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+suppColumns+` FROM supplements WHERE regimen_id = ? ORDER BY supp_id`, regimenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSupplements(rows)
}

// SupplementsWithReminders returns every supplement with at least one channel
// flag set, across all regimens. This is the read path for bulk reminder
// reconciliation; ordering is not significant to callers.
func (s *Store) SupplementsWithReminders(ctx context.Context) ([]domain.Supplement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+suppColumns+` FROM supplements
		 WHERE email_enabled = 1 OR text_enabled = 1 OR voice_enabled = 1
		 ORDER BY supp_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSupplements(rows)
}

// AddSupplement inserts and returns the row with its assigned ID.
func (s *Store) AddSupplement(ctx context.Context, supp domain.Supplement) (domain.Supplement, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO supplements
		 (regimen_id, supp_name, supp_amount, supp_units, supp_time,
		  email_enabled, text_enabled, voice_enabled, supp_notes)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		supp.RegimenID, supp.Name, supp.Amount, supp.Units, supp.Time.String(),
		supp.EmailEnabled, supp.TextEnabled, supp.VoiceEnabled, supp.Notes)
	if err != nil {
		return domain.Supplement{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Supplement{}, err
	}
	supp.ID = int(id)
	return supp, nil
}

// UpdateSupplement applies the non-nil fields of the patch to one row.
func (s *Store) UpdateSupplement(ctx context.Context, suppID int, patch SupplementPatch) error {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.RegimenID != nil {
		add("regimen_id", *patch.RegimenID)
	}
	if patch.Name != nil {
		add("supp_name", *patch.Name)
	}
	if patch.Amount != nil {
		add("supp_amount", *patch.Amount)
	}
	if patch.Units != nil {
		add("supp_units", *patch.Units)
	}
	if patch.Time != nil {
		add("supp_time", patch.Time.String())
	}
	if patch.EmailEnabled != nil {
		add("email_enabled", *patch.EmailEnabled)
	}
	if patch.TextEnabled != nil {
		add("text_enabled", *patch.TextEnabled)
	}
	if patch.VoiceEnabled != nil {
		add("voice_enabled", *patch.VoiceEnabled)
	}
	if patch.Notes != nil {
		add("supp_notes", *patch.Notes)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, suppID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE supplements SET `+strings.Join(sets, ", ")+` WHERE supp_id = ?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("supplement %d not found", suppID)
	}
	return nil
}

func (s *Store) DeleteSupplement(ctx context.Context, suppID int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM supplements WHERE supp_id = ?`, suppID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) DeleteAllSupplements(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM supplements`)
	return err
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSupplements(rows rowScanner) ([]domain.Supplement, error) {
	var out []domain.Supplement
	for rows.Next() {
		var (
			supp    domain.Supplement
			timeRaw string
		)
		if err := rows.Scan(&supp.ID, &supp.RegimenID, &supp.Name, &supp.Amount, &supp.Units,
			&timeRaw, &supp.EmailEnabled, &supp.TextEnabled, &supp.VoiceEnabled, &supp.Notes); err != nil {
			return nil, err
		}
		tod, err := domain.ParseTimeOfDay(timeRaw)
		if err != nil {
			return nil, fmt.Errorf("supplement %d: %w", supp.ID, err)
		}
		supp.Time = tod
		out = append(out, supp)
	}
	return out, rows.Err()
}
