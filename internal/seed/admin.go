// Package seed prepares a fresh database: an initial product catalog and the
// first super-admin account.
package seed

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pharmapos/m/domain"
	"pharmapos/m/internal/auth"
	"pharmapos/m/internal/store"
)

// BootstrapAdmin creates a super-admin with the given credentials when no active
// super-admin exists yet. It reports whether an account was created.
func BootstrapAdmin(ctx context.Context, db *sqlx.DB, email, password string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return false, nil
	}
	users := store.NewUsers(db)
	n, err := users.CountActiveByRole(ctx, domain.RoleSuperAdmin)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	hash, err := auth.HashPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	u := &domain.User{Email: email, DisplayName: "Administrator", PasswordHash: hash, Role: domain.RoleSuperAdmin, Active: true}
	if err := users.Create(ctx, u); err != nil {
		return false, err
	}
	zap.S().Infof("created bootstrap super_admin %s", u.Email)
	return true, nil
}
