package auth

import "quizhub-subscription-svc/src/internal/user"

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// Result is returned by register and login: a bearer token plus the public
// profile of the authenticated user.
type Result struct {
	Token string        `json:"token"`
	User  *user.Profile `json:"user"`
}
