package user

import (
	"strings"
	"time"
)

type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Mobile     string    `json:"mobile"`
	FirstName  string    `json:"firstName"`
	MiddleName string    `json:"middleName,omitempty"`
	LastName   string    `json:"lastName"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// CompleteName joins the name parts, skipping an absent middle name.
func (u User) CompleteName() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{u.FirstName, u.MiddleName, u.LastName} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type ListParams struct {
	Status string
	Offset int
	Limit  int
}

type CreateUserParams struct {
	Email        string
	Mobile       string
	FirstName    string
	MiddleName   string
	LastName     string
	Role         string
	Status       string
	Username     string
	PasswordHash string
}

type UpdateUserParams struct {
	Email      string
	Mobile     string
	FirstName  string
	MiddleName string
	LastName   string
	Role       string
	Status     string
}
