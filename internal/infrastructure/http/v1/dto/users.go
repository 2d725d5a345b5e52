package dto

import (
	"partscatalog/internal/domain/users"
)

// RegisterUserRequest for POST /users. Field rules live in users.Service.
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ToInput maps the request onto the service input.
func (r RegisterUserRequest) ToInput() users.RegisterInput {
	return users.RegisterInput{Name: r.Name, Email: r.Email, Password: r.Password}
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

// FromUser maps an account to its public shape.
func FromUser(u *users.User) UserResponse {
	return UserResponse{
		ID:        u.PublicID.String(),
		Name:      u.Name,
		Email:     u.Email,
		IsActive:  u.IsActive,
		CreatedAt: formatTime(u.CreatedAt),
	}
}
