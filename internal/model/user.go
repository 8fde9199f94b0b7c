package model

import "time"

type Role string

const (
	RoleDriver  Role = "driver"
	RoleSponsor Role = "sponsor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDriver, RoleSponsor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	SponsorID    *int64    `json:"sponsor_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
