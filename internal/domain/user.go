package domain

import "time"

type User struct {
	ID         int       `json:"id"`
	Username   string    `json:"username"`
	Password   string    `json:"-"` // bcrypt hash, never serialized
	IsSuperior bool      `json:"is_superior"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RegisterUserDTO struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=100"`
}

type LoginUserDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateUserDTO struct {
	Username   string `json:"username" binding:"omitempty,min=3,max=50"`
	Password   string `json:"password" binding:"omitempty,min=6,max=100"`
	IsSuperior *bool  `json:"is_superior"`
}

type AuthResponseDTO struct {
	Token      string `json:"token"`
	UserID     int    `json:"user_id"`
	Username   string `json:"username"`
	IsSuperior bool   `json:"is_superior"`
}

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	UserID     int
	Username   string
	IsSuperior bool
}
