package domain

import "time"

type Role string

const (
	RoleSuperAdmin         Role = "super_admin"
	RolePharmacyTechnician Role = "pharmacy_technician"
	RoleCashier            Role = "cashier"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RolePharmacyTechnician, RoleCashier:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Principal is the authenticated staff member an action is performed on behalf of.
type Principal struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	Active      bool   `json:"active"`
}

func (u User) Principal() Principal {
	return Principal{ID: u.ID, DisplayName: u.DisplayName, Role: u.Role, Active: u.Active}
}
