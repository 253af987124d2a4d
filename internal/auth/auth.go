// Package auth turns a bearer credential into a verified caller.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"videoapi/internal/access"
	"videoapi/internal/model"
	"videoapi/internal/repository"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnknownUser  = errors.New("user not found")
)

// Claims is the token payload. Only the user id is trusted; role and tenant
// are always read from the user record.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// UserFinder loads the user a token names.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Authenticator verifies HS256 tokens.
type Authenticator struct {
	secret []byte
	users  UserFinder
	now    func() time.Time
}

func New(secret string, users UserFinder) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users, now: time.Now}
}

// Sign issues a token for userID valid for ttl.
func (a *Authenticator) Sign(userID string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify validates token and resolves the caller from the current user record.
func (a *Authenticator) Verify(ctx context.Context, token string) (access.Caller, error) {
	if strings.TrimSpace(token) == "" {
		return access.Caller{}, ErrMissingToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return access.Caller{}, ErrTokenExpired
		}
		return access.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return access.Caller{}, ErrInvalidToken
	}

	u, err := a.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return access.Caller{}, ErrUnknownUser
	}
	if err != nil {
		return access.Caller{}, fmt.Errorf("load user: %w", err)
	}
	return access.NewCaller(*u), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
