package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, user_id, first_name, last_name, sex, city_id, city_title, profile_url"

// Create inserts the user unless a row with the same VK ID already exists.
// It reports whether a new row was written
func (r *UserRepository) Create(ctx context.Context, user *models.User) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO users (user_id, first_name, last_name, sex, city_id, city_title, profile_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`)
	res, err := r.db.ExecContext(ctx, query,
		user.UserID,
		user.FirstName,
		user.LastName,
		user.Sex,
		user.CityID,
		user.CityTitle,
		user.ProfileURL,
	)
	if err != nil {
		return false, apperr.Wrap(apperr.ErrPersistence, "create user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.ErrPersistence, "create user", err)
	}
	return n > 0, nil
}

// GetByUserID returns a user by VK ID
func (r *UserRepository) GetByUserID(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE user_id = ?")
	err := r.db.GetContext(ctx, &user, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "get user")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrPersistence, "get user", err)
	}
	return &user, nil
}

// Exists reports whether the user has been registered
func (r *UserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	var n int
	query := r.db.Rebind("SELECT COUNT(*) FROM users WHERE user_id = ?")
	if err := r.db.GetContext(ctx, &n, query, userID); err != nil {
		return false, apperr.Wrap(apperr.ErrPersistence, "check user", err)
	}
	return n > 0, nil
}

// GetAll returns all users ordered by registration
func (r *UserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY id"); err != nil {
		return nil, apperr.Wrap(apperr.ErrPersistence, "list users", err)
	}
	return users, nil
}

// Update overwrites the profile fields of an existing user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`
		UPDATE users
		SET first_name = ?, last_name = ?, sex = ?, city_id = ?, city_title = ?, profile_url = ?
		WHERE user_id = ?
	`)
	res, err := r.db.ExecContext(ctx, query,
		user.FirstName,
		user.LastName,
		user.Sex,
		user.CityID,
		user.CityTitle,
		user.ProfileURL,
		user.UserID,
	)
	if err != nil {
		return apperr.Wrap(apperr.ErrPersistence, "update user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.ErrNotFound, "update user")
	}
	return nil
}

// Delete removes the user together with preferences and matches
func (r *UserRepository) Delete(ctx context.Context, userID int64) error {
	query := r.db.Rebind("DELETE FROM users WHERE user_id = ?")
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return apperr.Wrap(apperr.ErrPersistence, "delete user", err)
	}
	return nil
}
