// Package auth is the identity and session provider: staff login, bearer
// session tokens, account administration and the role policy.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pharmapos/m/domain"
	"pharmapos/m/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

const minPasswordLength = 8

// Session is what a successful login hands back to the client.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

type Service struct {
	users  *store.Users
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost used for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users *store.Users, secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		users:   users,
		secret:  []byte(secret),
		ttl:     ttl,
		cost:    bcrypt.DefaultCost,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", domain.Invalid("password", "password must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, domain.Invalid("email", "email and password are required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, &domain.AuthorizationError{Role: user.Role, Action: "login", Reason: "account is inactive"}
	}
	token, expires, err := s.issue(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: *user}, nil
}

// Logout revokes the token until it would have expired on its own.
func (s *Service) Logout(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.revoked[c.ID] = c.ExpiresAt.Time
	s.mu.Unlock()
	return nil
}

// Session resolves a bearer token to the current state of its account. Role and
// active flag come from the users table, not the token, so changes apply at once.
func (s *Service) Session(ctx context.Context, token string) (domain.Principal, error) {
	c, err := s.parse(token)
	if err != nil {
		return domain.Principal{}, err
	}
	s.mu.Lock()
	_, revoked := s.revoked[c.ID]
	s.mu.Unlock()
	if revoked {
		return domain.Principal{}, ErrInvalidToken
	}
	user, err := s.users.Get(ctx, c.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, ErrInvalidToken
		}
		return domain.Principal{}, err
	}
	return user.Principal(), nil
}

// PruneRevoked forgets revoked tokens that have expired anyway and reports how
// many were dropped.
func (s *Service) PruneRevoked() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
			n++
		}
	}
	return n
}

// NewUser is the input to CreateUser.
type NewUser struct {
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Password    string      `json:"password"`
	Role        domain.Role `json:"role"`
}

// UserUpdate carries the fields to change; nil fields are left alone.
type UserUpdate struct {
	DisplayName *string      `json:"display_name"`
	Role        *domain.Role `json:"role"`
	Active      *bool        `json:"active"`
	Password    *string      `json:"password"`
}

func (s *Service) CreateUser(ctx context.Context, actor domain.Principal, in NewUser) (*domain.User, error) {
	if err := Authorize(actor, ActionManageUsers); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, domain.Invalid("email", "a valid email is required")
	}
	if in.DisplayName == "" {
		return nil, domain.Invalid("display_name", "display_name is required")
	}
	if !in.Role.Valid() {
		return nil, domain.Invalid("role", "role must be super_admin, pharmacy_technician or cashier")
	}
	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Email: in.Email, DisplayName: in.DisplayName, PasswordHash: hash, Role: in.Role, Active: true}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, actor domain.Principal, id int64, in UserUpdate) (*domain.User, error) {
	if err := Authorize(actor, ActionManageUsers); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActiveAdmin := u.Active && u.Role == domain.RoleSuperAdmin

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, domain.Invalid("display_name", "display_name must not be empty")
		}
		u.DisplayName = name
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, domain.Invalid("role", "role must be super_admin, pharmacy_technician or cashier")
		}
		u.Role = *in.Role
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	if in.Password != nil {
		hash, err := HashPassword(*in.Password, s.cost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	if wasActiveAdmin && (!u.Active || u.Role != domain.RoleSuperAdmin) {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, actor domain.Principal, id int64) error {
	if err := Authorize(actor, ActionManageUsers); err != nil {
		return err
	}
	if actor.ID == id {
		return domain.Invalid("id", "you cannot delete your own account")
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.Active && u.Role == domain.RoleSuperAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}
	return s.users.Delete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, actor domain.Principal) ([]domain.User, error) {
	if err := Authorize(actor, ActionManageUsers); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// ensureAnotherAdmin refuses changes that would leave no active super-admin.
func (s *Service) ensureAnotherAdmin(ctx context.Context) error {
	n, err := s.users.CountActiveByRole(ctx, domain.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return domain.Invalid("role", "at least one active super_admin must remain")
	}
	return nil
}
