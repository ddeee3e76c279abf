package service

import (
	"context"
	"testing"
	"time"

	"ai-videochat-be/internal/config"
	"ai-videochat-be/internal/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture() (*fakeStore, IAuthService) {
	store := newFakeStore()
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenLifetime = time.Hour
	svc := NewAuthService(&fakeFactory{store: store}, cfg, nil, nil)
	return store, svc
}

func TestRegisterAndLogin(t *testing.T) {
	_, svc := newAuthFixture()

	registered, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "alex@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", registered.Email)

	login, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alex@example.com",
		Password: "correct horse battery",
	}, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, registered.Id, login.User.Id)
	require.NotEmpty(t, login.AccessToken)

	// Token is HS256-signed and carries the user id as subject.
	token, err := jwt.Parse(login.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, registered.Id.String(), claims["sub"])
	assert.Equal(t, "alex@example.com", claims["email"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	_, svc := newAuthFixture()

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email: "dup@example.com", Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), &dto.RegisterRequest{
		Email: "dup@example.com", Password: "password456",
	})
	require.Error(t, err)
}

func TestLogin_WrongPassword(t *testing.T) {
	_, svc := newAuthFixture()

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email: "alex@example.com", Password: "the right one",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), &dto.LoginRequest{
		Email: "alex@example.com", Password: "the wrong one",
	}, "127.0.0.1")
	require.Error(t, err)
	assert.EqualError(t, err, "invalid email or password")
}

func TestLogin_UnknownEmail(t *testing.T) {
	_, svc := newAuthFixture()

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "nobody@example.com", Password: "whatever",
	}, "127.0.0.1")
	require.Error(t, err)
	assert.EqualError(t, err, "invalid email or password")
}
