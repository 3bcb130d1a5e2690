/**
 * @description
 * This file defines the user domain model and the DTOs used by the auth
 * endpoints. The subscription flag is a cached projection over the user's
 * payment history: it is flipped to true exactly once, by the grant service,
 * when a payment reaches `completed`.
 */

package domain

import "time"

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User maps to the `users` table. PasswordHash is never serialized.
type User struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Role            string    `json:"role"`
	HasSubscription bool      `json:"has_subscription"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RegisterRequest is the DTO for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the DTO for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both register and login. The token is an HS256
// JWT whose subject is the user's id.
type AuthResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	HasSubscription bool   `json:"has_subscription"`
	Token           string `json:"token"`
}
