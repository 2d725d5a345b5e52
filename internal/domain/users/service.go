package users

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/id"
	"partscatalog/pkg/logger"
)

const passwordMinLength = 8

// ServiceConfig configures the user service. Queue and Mailer are optional;
// without them the welcome email is unavailable.
type ServiceConfig struct {
	Repo    Repository
	Queue   JobQueue
	Mailer  Mailer
	AppName string
}

// Service manages accounts and their welcome email.
type Service struct {
	repo    Repository
	queue   JobQueue
	mailer  Mailer
	appName string
}

// NewService creates a user service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.AppName == "" {
		cfg.AppName = "Parts Catalog"
	}
	return &Service{repo: cfg.Repo, queue: cfg.Queue, mailer: cfg.Mailer, appName: cfg.AppName}
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Email, validation.Required, validation.Length(1, 255), is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(passwordMinLength, 72)),
	)
	if err != nil {
		return nil, apperror.FromValidation(err)
	}

	existing, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, apperror.NewDuplicate(EntityName, "email", in.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{Name: in.Name, Email: in.Email, PasswordHash: string(hash), IsActive: true}
	u.PublicID = id.New()
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.Info(ctx, "user registered", "user_id", u.PublicID)
	return u, nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// GetByPublicID returns (nil, nil) when the user does not exist.
func (s *Service) GetByPublicID(ctx context.Context, publicID string) (*User, error) {
	if !id.Valid(publicID) {
		return nil, nil
	}
	u, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail looks an account up case-insensitively; (nil, nil) when absent.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ScheduleWelcomeEmail enqueues the welcome email and returns the job id.
func (s *Service) ScheduleWelcomeEmail(ctx context.Context, publicID string) (string, error) {
	if s.queue == nil {
		return "", apperror.NewUnavailable("job queue")
	}
	u, err := s.GetByPublicID(ctx, publicID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", apperror.NewNotFound(EntityName, publicID)
	}

	jobID, err := s.queue.Enqueue(ctx, JobSendWelcomeEmail, WelcomeEmailPayload{UserID: u.PublicID.String()})
	if err != nil {
		return "", fmt.Errorf("schedule welcome email: %w", err)
	}
	logger.Info(ctx, "welcome email scheduled", "job_id", jobID, "user_id", u.PublicID)
	return jobID, nil
}

// SendWelcomeEmail runs the welcome job. A user deleted since scheduling is
// skipped rather than retried.
func (s *Service) SendWelcomeEmail(ctx context.Context, p WelcomeEmailPayload) error {
	if s.mailer == nil {
		return apperror.NewUnavailable("mail")
	}
	u, err := s.GetByPublicID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if u == nil {
		logger.Warn(ctx, "welcome email skipped, user not found", "user_id", p.UserID)
		return nil
	}

	msg, err := s.welcomeMessage(u)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}
	return nil
}

var welcomeHTML = template.Must(template.New("welcome").Parse(
	`<p>Hi {{.Name}},</p>
<p>Welcome to {{.App}}. Your account is ready: browse manufacturers, upload catalog pages and let the analyzer pull part numbers for you.</p>
<p>The {{.App}} team</p>`))

func (s *Service) welcomeMessage(u *User) (Message, error) {
	data := struct{ Name, App string }{Name: u.DisplayName(), App: s.appName}

	var html bytes.Buffer
	if err := welcomeHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render welcome email: %w", err)
	}
	text := fmt.Sprintf("Hi %s,\n\nWelcome to %s. Your account is ready.\n\nThe %s team\n", data.Name, data.App, data.App)

	return Message{
		To:      u.Email,
		ToName:  u.Name,
		Subject: "Welcome to " + s.appName,
		Text:    text,
		HTML:    html.String(),
	}, nil
}
