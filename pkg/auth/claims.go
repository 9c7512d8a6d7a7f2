package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Roles understood by the ledger's gRPC surface.
const (
	RoleAdmin     = "admin"
	RoleOperator  = "operator"
	RoleAuditor   = "auditor"
	RoleMerchant  = "merchant"
	RoleScheduler = "scheduler"
	RoleAPIClient = "api_client"
)

// Claims scope a caller to one tenant with a set of roles.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string   `json:"user_id"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

// Validate runs after the registered-claim checks during parsing.
func (c Claims) Validate() error {
	if c.TenantID == "" {
		return ErrMissingTenant
	}
	return nil
}

// HasRole reports whether the caller holds role.
func (c Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// HasAnyRole reports whether the caller holds at least one of roles.
func (c Claims) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, c.HasRole)
}
