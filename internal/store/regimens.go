package store

import (
	"context"
	"fmt"
	"strings"

	"vitaremind/internal/domain"
)

// RegimenPatch is a typed partial update: nil fields are left untouched.
type RegimenPatch struct {
	Name  *string
	Notes *string
}

// Regimens returns every regimen with its supplements populated.
func (s *Store) Regimens(ctx context.Context) ([]domain.Regimen, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT regimen_id, regimen_name, regimen_notes FROM regimens ORDER BY regimen_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Regimen
	for rows.Next() {
		var r domain.Regimen
		if err := rows.Scan(&r.ID, &r.Name, &r.Notes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		supps, err := s.Supplements(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Supplements = supps
	}
	return out, nil
}

func (s *Store) AddRegimen(ctx context.Context, r domain.Regimen) (domain.Regimen, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO regimens (regimen_name, regimen_notes) VALUES (?,?)`, r.Name, r.Notes)
	if err != nil {
		return domain.Regimen{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Regimen{}, err
	}
	r.ID = int(id)
	return r, nil
}

func (s *Store) UpdateRegimen(ctx context.Context, regimenID int, patch RegimenPatch) error {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if patch.Name != nil {
		sets = append(sets, "regimen_name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Notes != nil {
		sets = append(sets, "regimen_notes = ?")
		args = append(args, *patch.Notes)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, regimenID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE regimens SET `+strings.Join(sets, ", ")+` WHERE regimen_id = ?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("regimen %d not found", regimenID)
	}
	return nil
}

// DeleteRegimen removes the regimen; its supplements go with it via the
// foreign key cascade.
func (s *Store) DeleteRegimen(ctx context.Context, regimenID int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM regimens WHERE regimen_id = ?`, regimenID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
