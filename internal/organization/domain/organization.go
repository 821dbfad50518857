package domain

import (
	"errors"
	"time"
)

// Org represents an organization that owns tests and memberships.
// AuthorName is denormalized from the users table on read.
type Org struct {
	ID          string
	Title       string
	Description string
	Color       string
	AuthorID    string
	AuthorName  string
	CreatedAt   time.Time
}

// Validate validates the organization for persistence. Returns an error
// describing the first validation failure.
func (o *Org) Validate() error {
	if o.Title == "" {
		return errors.New("title is required")
	}
	if o.AuthorID == "" {
		return errors.New("author id is required")
	}
	return nil
}
