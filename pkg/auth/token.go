package auth

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/srms-platform/srms-backend/pkg/config"
)

// leeway absorbs clock skew between the identity provider and the gateway.
const leeway = 30 * time.Second

var hmacSigningMethod = jwt.SigningMethodHS256

// Verifier validates access tokens issued by the identity provider. RS256 is
// used when a public key is configured, HS256 with the shared secret
// otherwise.
type Verifier struct {
	method jwt.SigningMethod
	key    any
	opts   []jwt.ParserOption
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	v := &Verifier{}
	switch {
	case strings.TrimSpace(cfg.PublicKeyPEM) != "":
		pub, err := parsePublicKey(cfg.PublicKeyPEM)
		if err != nil {
			return nil, err
		}
		v.method, v.key = jwt.SigningMethodRS256, pub
	case cfg.Secret != "":
		v.method, v.key = hmacSigningMethod, []byte(cfg.Secret)
	default:
		return nil, fmt.Errorf("jwt secret or public key is required")
	}

	v.opts = []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	return v, nil
}

// Algorithm reports the signing algorithm tokens must use.
func (v *Verifier) Algorithm() string {
	return v.method.Alg()
}

// Verify validates the token string and returns typed claims. Tokens without
// a subject are rejected.
func (v *Verifier) Verify(tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != v.method.Alg() {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return v.key, nil
		},
		v.opts...,
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// MintAccessToken issues an HS256 token in the identity provider's claim
// shape. It backs local tooling and tests; production tokens come from the
// identity provider.
func MintAccessToken(cfg config.JWTConfig, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}
	if strings.TrimSpace(payload.Subject) == "" {
		return "", fmt.Errorf("subject is required")
	}

	roles := make([]string, 0, len(payload.Roles))
	for _, role := range payload.Roles {
		if !role.IsValid() {
			return "", fmt.Errorf("invalid role %q", role)
		}
		roles = append(roles, role.String())
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		PreferredUsername: payload.Username,
		RealmAccess:       RealmAccess{Roles: roles},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(hmacSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

func parsePublicKey(value string) (*rsa.PublicKey, error) {
	pemText := strings.TrimSpace(value)
	if !strings.HasPrefix(pemText, "-----BEGIN") {
		// identity providers publish the bare base64 body
		pemText = "-----BEGIN PUBLIC KEY-----\n" + pemText + "\n-----END PUBLIC KEY-----"
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemText))
	if err != nil {
		return nil, fmt.Errorf("parsing jwt public key: %w", err)
	}
	return key, nil
}
