package tenant

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile is the part of a tenant account the engine reads: who to email
// and whether the account bypasses subscription checks.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns Name, or the local part of Email when Name is empty.
func (p Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}

// Store loads tenant profiles.
type Store interface {
	// GetByID returns ErrTenantNotFound when no tenant has the id.
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
}

// SuperAdmin identifies the operator identity that bypasses subscription checks.
// Either field may be empty; an empty field never matches.
type SuperAdmin struct {
	Role  string `env:"SUPER_ADMIN_ROLE" envDefault:"super_admin"`
	Email string `env:"SUPER_ADMIN_EMAIL"`
}

// Matches reports whether p is the super-admin, by role or by email (case-insensitive).
func (s SuperAdmin) Matches(p *Profile) bool {
	if p == nil {
		return false
	}
	if s.Role != "" && p.Role == s.Role {
		return true
	}
	return s.Email != "" && strings.EqualFold(strings.TrimSpace(p.Email), strings.TrimSpace(s.Email))
}
