package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoapi/internal/model"
	"videoapi/internal/repository"
	repoMocks "videoapi/internal/repository/mocks"
)

const secret = "test-secret"

func TestSignAndVerify(t *testing.T) {
	ctx := context.Background()
	owner := "owner-1"
	users := &repoMocks.MockUserRepository{}
	users.On("FindByID", ctx, "u1").Return(&model.User{ID: "u1", Role: model.RoleEditor, TenantID: &owner}, nil)

	a := New(secret, users)
	token, err := a.Sign("u1", time.Hour)
	require.NoError(t, err)

	caller, err := a.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", caller.UserID)
	assert.Equal(t, model.RoleEditor, caller.Role)
	assert.Equal(t, "owner-1", caller.TenantID)
	users.AssertExpectations(t)
}

func TestVerifyFailures(t *testing.T) {
	ctx := context.Background()
	users := &repoMocks.MockUserRepository{}
	users.On("FindByID", ctx, "gone").Return(nil, repository.ErrNotFound)
	users.On("FindByID", ctx, "broken").Return(nil, errors.New("db down"))

	a := New(secret, users)

	expired := New(secret, users)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Sign("u1", time.Hour)
	require.NoError(t, err)

	otherKey, err := New("other-secret", users).Sign("u1", time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte(secret))
	require.NoError(t, err)

	gone, err := a.Sign("gone", time.Hour)
	require.NoError(t, err)
	broken, err := a.Sign("broken", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
		wantMsg string
	}{
		{"empty", " ", ErrMissingToken, ""},
		{"garbage", "not.a.jwt", ErrInvalidToken, ""},
		{"expired", expiredToken, ErrTokenExpired, ""},
		{"wrong key", otherKey, ErrInvalidToken, ""},
		{"alg none", noneToken, ErrInvalidToken, ""},
		{"missing user id", noUser, ErrInvalidToken, ""},
		{"unknown user", gone, ErrUnknownUser, ""},
		{"lookup failure", broken, nil, "load user: db down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Verify(ctx, tt.token)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.EqualError(t, err, tt.wantMsg)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer   abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("abc"))
	assert.Equal(t, "", BearerToken(""))
}
