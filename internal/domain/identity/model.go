// Package identity manages user accounts, authentication and the capability
// model. A user's effective permission set is computed at evaluation time
// from role defaults plus per-user grant/revoke overrides, so a change to a
// role's defaults propagates without rewriting user rows.
package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/sewaclinic/sewa/internal/platform/auth"
)

// User is a staff account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	OrgID        string    `json:"organization_id"`
	// GrantedExtra and Revoked override the role defaults per user.
	GrantedExtra []string  `json:"granted_extra"`
	Revoked      []string  `json:"revoked"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultCapabilities returns the capability set a role starts from.
func DefaultCapabilities(role string) []string {
	switch role {
	case auth.RoleSuperAdmin:
		return auth.AllPermissions()
	case auth.RoleSubAdmin:
		return []string{
			auth.PermRegisterPatient, auth.PermRunConsultation, auth.PermViewVisits,
			auth.PermEnterLabResults, auth.PermAddInventory, auth.PermEditInventory,
			auth.PermDeleteInventory, auth.PermViewInventory, auth.PermAccessBilling,
			auth.PermProcessSales, auth.PermViewSales, auth.PermManageCatalog,
			auth.PermViewReports, auth.PermViewFinancials, auth.PermManageUsers,
			auth.PermCancelVisit, auth.PermViewLowStock, auth.PermViewPatientHistory,
		}
	case auth.RoleUser:
		return []string{
			auth.PermRegisterPatient, auth.PermViewVisits, auth.PermViewInventory,
			auth.PermViewPatientHistory,
		}
	default:
		return nil
	}
}

// EffectiveCapabilities resolves the user's permission set: role defaults,
// plus granted extras, minus revocations.
func (u *User) EffectiveCapabilities() []string {
	revoked := make(map[string]struct{}, len(u.Revoked))
	for _, p := range u.Revoked {
		revoked[p] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(perms []string) {
		for _, p := range perms {
			if _, rm := revoked[p]; rm {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	add(DefaultCapabilities(u.Role))
	add(u.GrantedExtra)
	return out
}

// Can reports whether the user's effective set includes perm.
func (u *User) Can(perm string) bool {
	return auth.HasPermission(u.EffectiveCapabilities(), perm)
}
