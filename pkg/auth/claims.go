package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/srms-platform/srms-backend/pkg/enums"
)

// RealmAccess mirrors the identity provider's realm role claim.
type RealmAccess struct {
	Roles []string `json:"roles"`
}

// AccessTokenClaims is the subset of the identity provider's access token
// the gateway relies on.
type AccessTokenClaims struct {
	PreferredUsername string      `json:"preferred_username,omitempty"`
	RealmAccess       RealmAccess `json:"realm_access"`
	jwt.RegisteredClaims
}

// Roles returns the recognised realm roles. Unknown roles are dropped.
func (c *AccessTokenClaims) Roles() []enums.Role {
	if c == nil {
		return nil
	}
	return enums.ParseRoles(strings.Join(c.RealmAccess.Roles, ","))
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject  string
	Username string
	Roles    []enums.Role
	JTI      string
}
