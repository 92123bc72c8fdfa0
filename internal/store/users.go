package store

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"pharmapos/m/domain"
)

const userColumns = `id, email, display_name, password_hash, role, active, created_at`

// Users is the staff account table backing the identity provider.
type Users struct {
	q sqlx.ExtContext
}

func NewUsers(q sqlx.ExtContext) *Users {
	return &Users{q: q}
}

func (r *Users) Create(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := r.q.QueryRowxContext(ctx, r.q.Rebind(`INSERT INTO users
		(email, display_name, password_hash, role, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		u.Email, u.DisplayName, u.PasswordHash, u.Role, u.Active, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(domain.ErrConflict, "email already exists")
		}
		return persistence("insert user", err)
	}
	return nil
}

func (r *Users) Get(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := sqlx.GetContext(ctx, r.q, &u, r.q.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id); err != nil {
		return nil, notFound(err, "user %d", id)
	}
	return &u, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := sqlx.GetContext(ctx, r.q, &u, r.q.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email); err != nil {
		return nil, notFound(err, "user %s", email)
	}
	return &u, nil
}

func (r *Users) List(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	if err := sqlx.SelectContext(ctx, r.q, &users, `SELECT `+userColumns+` FROM users ORDER BY display_name, id`); err != nil {
		return nil, persistence("list users", err)
	}
	return users, nil
}

// Update writes display name, role, active flag and password hash.
func (r *Users) Update(ctx context.Context, u *domain.User) error {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`UPDATE users
		SET display_name = ?, role = ?, active = ?, password_hash = ?
		WHERE id = ?`), u.DisplayName, u.Role, u.Active, u.PasswordHash, u.ID)
	if err != nil {
		return persistence("update user", err)
	}
	return expectOne(res, "user %d", u.ID)
}

// Delete removes an account that never recorded a sale; others must be deactivated.
func (r *Users) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errors.Wrapf(domain.ErrConflict, "user %d has recorded sales, deactivate instead", id)
		}
		return persistence("delete user", err)
	}
	return expectOne(res, "user %d", id)
}

func (r *Users) CountActiveByRole(ctx context.Context, role domain.Role) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, r.q.Rebind(`SELECT COUNT(*) FROM users WHERE role = ? AND active = ?`), role, true); err != nil {
		return 0, persistence("count users", err)
	}
	return n, nil
}
