package postgres

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/samber/oops"
)

// HistoryRepository implements authcore.HistoryStore on password_history,
// keeping at most retention rows per account.
type HistoryRepository struct {
	db        DB
	retention int
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db DB, retention int) *HistoryRepository {
	if retention < 1 {
		retention = 1
	}
	return &HistoryRepository{db: db, retention: retention}
}

var _ authcore.HistoryStore = (*HistoryRepository)(nil)

// RecentHashes returns up to n hashes, newest first.
func (r *HistoryRepository) RecentHashes(ctx context.Context, accountID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT password_hash
		FROM password_history
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, accountID, n)
	if err != nil {
		return nil, oops.Code("HISTORY_QUERY_FAILED").With("operation", "select history").Wrap(err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, oops.Code("HISTORY_QUERY_FAILED").With("operation", "scan history").Wrap(err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("HISTORY_QUERY_FAILED").With("operation", "iterate history").Wrap(err)
	}
	return hashes, nil
}

// AppendHash records hash and trims the account's history to the retention
// limit.
func (r *HistoryRepository) AppendHash(ctx context.Context, accountID, hash string, at time.Time) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO password_history (account_id, password_hash, created_at)
		VALUES ($1, $2, $3)
	`, accountID, hash, at); err != nil {
		return oops.Code("HISTORY_APPEND_FAILED").With("operation", "insert history").Wrap(err)
	}

	if _, err := r.db.Exec(ctx, `
		DELETE FROM password_history
		WHERE account_id = $1
		  AND id NOT IN (
			SELECT id FROM password_history
			WHERE account_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		  )
	`, accountID, r.retention); err != nil {
		return oops.Code("HISTORY_TRIM_FAILED").With("operation", "trim history").Wrap(err)
	}
	return nil
}
