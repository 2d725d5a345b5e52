// Package users holds the user accounts that own uploads and receive
// transactional email.
package users

import (
	"context"
	"strings"
	"time"

	"partscatalog/internal/core/entity"
)

// EntityName is used in error messages.
const EntityName = "User"

// JobSendWelcomeEmail is the background job that greets a new user.
const JobSendWelcomeEmail = "send-welcome-email"

// User represents an account.
type User struct {
	entity.Identity

	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// DisplayName falls back to the mailbox name when Name is empty.
func (u *User) DisplayName() string {
	if n := strings.TrimSpace(u.Name); n != "" {
		return n
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// RegisterInput creates an account.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// WelcomeEmailPayload is the job payload of JobSendWelcomeEmail.
type WelcomeEmailPayload struct {
	UserID string `json:"userId"`
}

// Message is one outgoing email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByPublicID(ctx context.Context, publicID string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// JobQueue schedules background work.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
}
