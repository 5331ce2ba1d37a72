package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sewaclinic/sewa/internal/platform/auth"
)

// ErrInvalidCredentials is returned for any authentication failure so the
// response never reveals whether the username exists.
var ErrInvalidCredentials = errors.New("username or password incorrect")

type Service struct {
	repo      Repository
	jwtSecret []byte
	jwtTTL    time.Duration
	logger    zerolog.Logger
}

func NewService(repo Repository, jwtSecret []byte, jwtTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, jwtSecret: jwtSecret, jwtTTL: jwtTTL, logger: logger}
}

// Authenticate checks credentials and issues a session token carrying the
// user's effective capability set.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, string, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if IsNotFound(err) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !u.Active {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.IssueToken(s.jwtSecret, s.jwtTTL,
		u.ID.String(), u.Username, u.Role, u.OrgID, u.EffectiveCapabilities())
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}

// CreateUser applies the grant rules: SUPER_ADMIN creates SUB_ADMINs in any
// organization, SUB_ADMIN creates USERs within its own, USER creates nobody.
func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if u.OrgID == "" || u.OrgID == auth.ScopeAll {
		return fmt.Errorf("user must belong to a specific organization")
	}

	creatorRole := auth.RoleFromContext(ctx)
	switch creatorRole {
	case auth.RoleSuperAdmin:
		if u.Role != auth.RoleSubAdmin && u.Role != auth.RoleUser {
			return fmt.Errorf("invalid role %q", u.Role)
		}
	case auth.RoleSubAdmin:
		if u.Role != auth.RoleUser {
			return fmt.Errorf("a SUB_ADMIN may only create USER accounts")
		}
		if u.OrgID != auth.OrgFromContext(ctx) {
			return fmt.Errorf("a SUB_ADMIN may only create users in its own organization")
		}
	default:
		return fmt.Errorf("not allowed to create users")
	}

	// An override may only reference capabilities the creator itself holds.
	creatorPerms := auth.PermissionsFromContext(ctx)
	for _, p := range u.GrantedExtra {
		if !auth.HasPermission(creatorPerms, p) {
			return fmt.Errorf("cannot grant permission %q you do not hold", p)
		}
	}

	if existing, err := s.repo.GetByUsername(ctx, u.Username); err == nil && existing != nil {
		return fmt.Errorf("username %q is taken", u.Username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.Active = true
	if u.GrantedExtra == nil {
		u.GrantedExtra = []string{}
	}
	if u.Revoked == nil {
		u.Revoked = []string{}
	}
	return s.repo.Create(ctx, u)
}

// UpdateOverrides replaces a user's grant/revoke override lists.
func (s *Service) UpdateOverrides(ctx context.Context, id uuid.UUID, granted, revoked []string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	creatorPerms := auth.PermissionsFromContext(ctx)
	for _, p := range granted {
		if !auth.HasPermission(creatorPerms, p) {
			return nil, fmt.Errorf("cannot grant permission %q you do not hold", p)
		}
	}

	if granted == nil {
		granted = []string{}
	}
	if revoked == nil {
		revoked = []string{}
	}
	u.GrantedExtra = granted
	u.Revoked = revoked
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword sets a new password for the user.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.repo.Update(ctx, u)
}

// Deactivate disables login for the user without deleting its history.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	u.Active = false
	return s.repo.Update(ctx, u)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.repo.List(ctx, auth.OrgFromContext(ctx))
}

// Default bootstrap credentials. The seeded password must be changed on
// first login in any real deployment.
const (
	BootstrapUsername = "admin"
	BootstrapPassword = "admin123"
)

// Bootstrap seeds a default SUPER_ADMIN when the users table is empty, so a
// fresh install has a working login.
func (s *Service) Bootstrap(ctx context.Context, orgID string) error {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(BootstrapPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin := &User{
		Username:     BootstrapUsername,
		PasswordHash: string(hash),
		FullName:     "Administrator",
		Role:         auth.RoleSuperAdmin,
		OrgID:        orgID,
		GrantedExtra: []string{},
		Revoked:      []string{},
		Active:       true,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Warn().Str("username", BootstrapUsername).
		Msg("seeded default administrator, change the password immediately")
	return nil
}
