package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"vitaremind/internal/domain"
)

// BackupExt is the extension for exported backup files.
const BackupExt = ".vrdata"

// Backup writes a SQL script that recreates the user's data: one statement
// per line, DELETEs first so a restore replaces rather than merges.
func (s *Store) Backup(ctx context.Context, w io.Writer) error {
	bw := bufio.NewWriter(w)

	for _, stmt := range []string{
		"DELETE FROM supplements;",
		"DELETE FROM regimens;",
		"DELETE FROM prefs;",
	} {
		if _, err := fmt.Fprintln(bw, stmt); err != nil {
			return err
		}
	}

	regimens, err := s.Regimens(ctx)
	if err != nil {
		return err
	}
	for _, r := range regimens {
		if _, err := fmt.Fprintf(bw,
			"INSERT INTO regimens (regimen_id, regimen_name, regimen_notes) VALUES (%d, %s, %s);\n",
			r.ID, sqlQuote(r.Name), sqlQuote(r.Notes)); err != nil {
			return err
		}
		for _, supp := range r.Supplements {
			if err := writeSupplementInsert(bw, supp); err != nil {
				return err
			}
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM prefs ORDER BY key`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(bw, "INSERT INTO prefs (key, value) VALUES (%s, %s);\n",
			sqlQuote(k), sqlQuote(v)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return bw.Flush()
}

func writeSupplementInsert(w io.Writer, supp domain.Supplement) error {
	_, err := fmt.Fprintf(w,
		"INSERT INTO supplements (supp_id, regimen_id, supp_name, supp_amount, supp_units, supp_time, email_enabled, text_enabled, voice_enabled, supp_notes) VALUES (%d, %d, %s, %s, %s, %s, %d, %d, %d, %s);\n",
		supp.ID, supp.RegimenID, sqlQuote(supp.Name),
		strconv.FormatFloat(supp.Amount, 'f', -1, 64),
		sqlQuote(supp.Units), sqlQuote(supp.Time.String()),
		boolInt(supp.EmailEnabled), boolInt(supp.TextEnabled), boolInt(supp.VoiceEnabled),
		sqlQuote(supp.Notes))
	return err
}

// Restore executes a script produced by Backup inside one transaction, so a
// malformed file leaves the database untouched.
func (s *Store) Restore(ctx context.Context, r io.Reader) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		stmt := strings.TrimSpace(sc.Text())
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("restore line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return tx.Commit()
}

// BackupFile exports to the given path, enforcing the backup extension.
func (s *Store) BackupFile(ctx context.Context, path string) error {
	if !strings.HasSuffix(path, BackupExt) {
		path += BackupExt
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Backup(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// RestoreFile imports from a backup file produced by BackupFile.
func (s *Store) RestoreFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Restore(ctx, f)
}

func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
