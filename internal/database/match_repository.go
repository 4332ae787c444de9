package database

import (
	"context"

	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// MatchRepository stores candidates found for a user
type MatchRepository struct {
	db *sqlx.DB
}

// NewMatchRepository creates a new repository instance
func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// SaveMatches stores matches for the user in one transaction. Candidates that
// are already recorded for this user are skipped. Returns the number of new rows
func (r *MatchRepository) SaveMatches(ctx context.Context, userID int64, matches []models.Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}

	query := r.db.Rebind(`
		INSERT INTO matches (user_id, match_id, first_name, last_name, profile_url, photo, photo_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, match_id) DO NOTHING
	`)

	inserted := 0
	err := WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range matches {
			res, err := stmt.ExecContext(ctx,
				userID,
				m.MatchID,
				m.FirstName,
				m.LastName,
				m.ProfileURL,
				m.Photo,
				m.PhotoURL,
			)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrPersistence, "save matches", err)
	}
	return inserted, nil
}

// ListByUser returns the matches of a user in insertion order
func (r *MatchRepository) ListByUser(ctx context.Context, userID int64) ([]models.Match, error) {
	var matches []models.Match
	query := r.db.Rebind(`
		SELECT id, user_id, match_id, first_name, last_name, profile_url, photo, photo_url, created_at
		FROM matches
		WHERE user_id = ?
		ORDER BY id ASC
	`)
	if err := r.db.SelectContext(ctx, &matches, query, userID); err != nil {
		return nil, apperr.Wrap(apperr.ErrPersistence, "list matches", err)
	}
	return matches, nil
}

// CountByUser returns how many matches are stored for the user
func (r *MatchRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	query := r.db.Rebind("SELECT COUNT(*) FROM matches WHERE user_id = ?")
	if err := r.db.GetContext(ctx, &n, query, userID); err != nil {
		return 0, apperr.Wrap(apperr.ErrPersistence, "count matches", err)
	}
	return n, nil
}
