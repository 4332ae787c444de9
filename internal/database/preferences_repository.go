package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// PreferencesRepository stores per-user search preferences
type PreferencesRepository struct {
	db *sqlx.DB
}

// NewPreferencesRepository creates a new repository instance
func NewPreferencesRepository(db *sqlx.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

const preferencesColumns = "id, user_id, age_min, age_max, sex, city_id, city_title, relation"

// Get retrieves the preferences of a user
func (r *PreferencesRepository) Get(ctx context.Context, userID int64) (*models.SearchPreferences, error) {
	var prefs models.SearchPreferences
	query := r.db.Rebind("SELECT " + preferencesColumns + " FROM search_preferences WHERE user_id = ?")
	err := r.db.GetContext(ctx, &prefs, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "get preferences")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrPersistence, "get preferences", err)
	}
	return &prefs, nil
}

// Create inserts a full preferences row. It fails if the user already has one
func (r *PreferencesRepository) Create(ctx context.Context, prefs models.SearchPreferences) error {
	query := r.db.Rebind(`
		INSERT INTO search_preferences (user_id, age_min, age_max, sex, city_id, city_title, relation)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		prefs.UserID,
		prefs.AgeMin,
		prefs.AgeMax,
		prefs.Sex,
		prefs.CityID,
		prefs.CityTitle,
		prefs.Relation,
	)
	return apperr.Wrap(apperr.ErrPersistence, "create preferences", err)
}

// Update applies a partial update, creating the row with defaults first if
// the user has none yet. Both steps share one transaction
func (r *PreferencesRepository) Update(ctx context.Context, userID int64, upd models.PreferencesUpdate) error {
	if upd.Empty() {
		return nil
	}

	var (
		sets []string
		args []interface{}
	)
	if upd.AgeMin != nil {
		sets, args = append(sets, "age_min = ?"), append(args, *upd.AgeMin)
	}
	if upd.AgeMax != nil {
		sets, args = append(sets, "age_max = ?"), append(args, *upd.AgeMax)
	}
	if upd.Sex != nil {
		sets, args = append(sets, "sex = ?"), append(args, *upd.Sex)
	}
	if upd.CityID != nil {
		sets, args = append(sets, "city_id = ?"), append(args, *upd.CityID)
	}
	if upd.CityTitle != nil {
		sets, args = append(sets, "city_title = ?"), append(args, *upd.CityTitle)
	}
	if upd.Relation != nil {
		sets, args = append(sets, "relation = ?"), append(args, *upd.Relation)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, userID)

	defaults := models.DefaultSearchPreferences(userID)
	insert := r.db.Rebind(`
		INSERT INTO search_preferences (user_id, age_min, age_max, sex, city_id, city_title, relation)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`)
	update := r.db.Rebind("UPDATE search_preferences SET " + strings.Join(sets, ", ") + " WHERE user_id = ?")

	err := WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insert,
			defaults.UserID, defaults.AgeMin, defaults.AgeMax, defaults.Sex,
			defaults.CityID, defaults.CityTitle, defaults.Relation,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, update, args...)
		return err
	})
	return apperr.Wrap(apperr.ErrPersistence, "update preferences", err)
}

// Delete removes the preferences of a user
func (r *PreferencesRepository) Delete(ctx context.Context, userID int64) error {
	query := r.db.Rebind("DELETE FROM search_preferences WHERE user_id = ?")
	_, err := r.db.ExecContext(ctx, query, userID)
	return apperr.Wrap(apperr.ErrPersistence, "delete preferences", err)
}
