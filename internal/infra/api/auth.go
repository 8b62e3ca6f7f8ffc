package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coaching-subscription/internal/domain/model"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// Claims is the token shape issued by the auth service. Older tokens carry
// the tenant as tenant_id instead of coachingId.
type Claims struct {
	Role       string `json:"role"`
	CoachingID string `json:"coachingId,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) tenant() string {
	if c.CoachingID != "" {
		return c.CoachingID
	}
	return c.TenantID
}

// Authenticator verifies HS256 bearer tokens. Issuing tokens for real users
// is the auth service's job; Mint exists for seeding and tests.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

func (a *Authenticator) Mint(p model.Principal, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role:       string(p.Role),
		CoachingID: p.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) ParseFromRequest(r *http.Request) (model.Principal, error) {
	// Authorization: Bearer <jwt>
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return model.Principal{}, errMissingToken
	}
	return a.Parse(strings.TrimSpace(hdr[7:]))
}

func (a *Authenticator) Parse(tok string) (model.Principal, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid {
		return model.Principal{}, errInvalidToken
	}
	if claims.Subject == "" || claims.Role == "" {
		return model.Principal{}, errInvalidToken
	}
	return model.Principal{
		UserID:   claims.Subject,
		Role:     model.ParseRole(claims.Role),
		TenantID: claims.tenant(),
	}, nil
}
