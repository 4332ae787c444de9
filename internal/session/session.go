// Package session keeps the transient wizard state of each user
package session

import (
	"context"
	"time"
)

// Step is a position in the preference questionnaire
type Step string

const (
	StepAge      Step = "age"
	StepSex      Step = "sex"
	StepCity     Step = "city"
	StepRelation Step = "relation"
)

// Valid reports whether s is a known step
func (s Step) Valid() bool {
	switch s {
	case StepAge, StepSex, StepCity, StepRelation:
		return true
	}
	return false
}

// Session is the wizard state of one user
type Session struct {
	UserID    int64     `json:"user_id"`
	Step      Step      `json:"step"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds sessions. Get returns nil and no error when the user has no
// live session. Implementations are safe for concurrent use
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Set(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}
