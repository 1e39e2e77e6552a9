package model

import "time"

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleLoanOfficer Role = "loan_officer"
	RoleAnalyst     Role = "analyst"
)

// User is a dashboard subject. User records are owned by an external
// user-management collaborator; this service only reads them.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Role         Role      `json:"role"`
	TenantID     string    `json:"tenant_id"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// PublicUser is the subset of User returned by the auth endpoints.
type PublicUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenant_id"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		TenantID: u.TenantID,
	}
}
