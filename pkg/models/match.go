package models

import "time"

// Match is a candidate found by search and stored for a user
type Match struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	MatchID    int64     `json:"match_id" db:"match_id"` // VK ID of the candidate
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	ProfileURL string    `json:"profile_url" db:"profile_url"`
	Photo      string    `json:"photo" db:"photo"`         // attachment reference, e.g. photo123_456
	PhotoURL   string    `json:"photo_url" db:"photo_url"` // direct link to the largest photo size
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
