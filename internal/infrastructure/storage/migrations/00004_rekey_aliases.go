package migrations

import (
	"context"
	"database/sql"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upRekeyAliases, downRekeyAliases)
}

// upRekeyAliases re-cleans alias keys written by older cleaning rules.
// When two rows collapse onto the same key the one with more observations
// survives.
func upRekeyAliases(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT alias_key, observation_count FROM merchant_aliases ORDER BY alias_key
	`)
	if err != nil {
		return err
	}

	type row struct {
		key   string
		count int
	}
	var stale []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.key, &r.count); err != nil {
			_ = rows.Close()
			return err
		}
		if merchant.Clean(r.key) != r.key {
			stale = append(stale, r)
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, r := range stale {
		cleaned := merchant.Clean(r.key)
		if cleaned == "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM merchant_aliases WHERE alias_key = ?`, r.key); err != nil {
				return err
			}
			continue
		}

		var existing int
		err := tx.QueryRowContext(ctx, `
			SELECT observation_count FROM merchant_aliases WHERE alias_key = ?
		`, cleaned).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx, `UPDATE merchant_aliases SET alias_key = ? WHERE alias_key = ?`, cleaned, r.key)
		case err != nil:
			return err
		case r.count > existing:
			if _, err = tx.ExecContext(ctx, `DELETE FROM merchant_aliases WHERE alias_key = ?`, cleaned); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `UPDATE merchant_aliases SET alias_key = ? WHERE alias_key = ?`, cleaned, r.key)
		default:
			_, err = tx.ExecContext(ctx, `DELETE FROM merchant_aliases WHERE alias_key = ?`, r.key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// downRekeyAliases is a no-op; the original keys are not recoverable
func downRekeyAliases(ctx context.Context, tx *sql.Tx) error {
	return nil
}
