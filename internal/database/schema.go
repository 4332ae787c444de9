package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// tables in creation order; dropped in reverse
var tables = []string{"users", "search_preferences", "matches"}

func autoID(driver string) string {
	if driver == DriverPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func schemaStatements(driver string) []string {
	id := autoID(driver)
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			user_id BIGINT NOT NULL UNIQUE,
			first_name VARCHAR(50) NOT NULL,
			last_name VARCHAR(50) NOT NULL,
			sex SMALLINT NOT NULL DEFAULT 0,
			city_id BIGINT NOT NULL DEFAULT 0,
			city_title VARCHAR(100) NOT NULL DEFAULT '',
			profile_url VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, id),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS search_preferences (
			id %s,
			user_id BIGINT NOT NULL UNIQUE REFERENCES users(user_id) ON DELETE CASCADE,
			age_min SMALLINT NOT NULL DEFAULT 18,
			age_max SMALLINT NOT NULL DEFAULT 99,
			sex SMALLINT NOT NULL DEFAULT 0,
			city_id BIGINT NOT NULL DEFAULT 1,
			city_title VARCHAR(100) NOT NULL DEFAULT 'Москва',
			relation SMALLINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, id),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS matches (
			id %s,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			match_id BIGINT NOT NULL,
			first_name VARCHAR(50) NOT NULL,
			last_name VARCHAR(50) NOT NULL,
			profile_url VARCHAR(255) NOT NULL,
			photo VARCHAR(255) NOT NULL DEFAULT '',
			photo_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, match_id)
		)`, id),
	}
}

// CreateTables creates the schema if it does not exist yet
func CreateTables(db *sqlx.DB) error {
	for i, stmt := range schemaStatements(db.DriverName()) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create %s table: %w", tables[i], err)
		}
	}
	return nil
}

// DropTables drops every table together with its data
func DropTables(db *sqlx.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		stmt := "DROP TABLE IF EXISTS " + tables[i]
		if db.DriverName() == DriverPostgres {
			stmt += " CASCADE"
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", tables[i], err)
		}
	}
	return nil
}

// RecreateTables drops and creates the schema. All data is lost
func RecreateTables(db *sqlx.DB) error {
	if err := DropTables(db); err != nil {
		return err
	}
	return CreateTables(db)
}
