// Package services contains application services for the APIFarm CLI.
// This file defines the authentication service: register, login and logout
// against the server, with the session token kept in a local file between
// invocations.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhusq20/APIFarm/internal/client/client"
	"github.com/zhusq20/APIFarm/internal/filex"
)

var (
	ErrAlreadyLoggedIn = errors.New("already logged in")
	ErrNotLoggedIn     = errors.New("not logged in")
)

// API is the part of *client.Client the auth service drives.
type API interface {
	Register(ctx context.Context, username, password string) (*client.RegisterResult, error)
	Login(ctx context.Context, username, password string) (token, userID string, err error)
	Logout(ctx context.Context) (string, error)
	SetToken(token string)
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Register: create a user, or report the existing one.
//   - Login: refuse when a token is already saved, otherwise authenticate
//     and save the token.
//   - Logout: refuse when no token is saved, otherwise revoke it on the
//     server and delete the token file.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*client.RegisterResult, error)
	Login(ctx context.Context, username, password string) (userID string, err error)
	Logout(ctx context.Context) error
	LoggedIn() bool
}

type authService struct {
	api       API
	tokenFile string
	token     string
}

// NewAuthService loads any saved token from tokenFile and hands it to api.
func NewAuthService(api API, tokenFile string) (AuthService, error) {
	a := &authService{api: api, tokenFile: tokenFile}

	data, ok, err := filex.ReadFileIfExists(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	if ok {
		a.token = strings.TrimSpace(string(data))
		api.SetToken(a.token)
	}
	return a, nil
}

func (a *authService) LoggedIn() bool { return a.token != "" }

func (a *authService) Register(ctx context.Context, username, password string) (*client.RegisterResult, error) {
	return a.api.Register(ctx, username, password)
}

func (a *authService) Login(ctx context.Context, username, password string) (string, error) {
	if a.LoggedIn() {
		return "", ErrAlreadyLoggedIn
	}

	token, userID, err := a.api.Login(ctx, username, password)
	if err != nil {
		return "", fmt.Errorf("login error: %w", err)
	}

	if err := filex.WriteFileAtomic(a.tokenFile, []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("saving token: %w", err)
	}
	a.token = token
	return userID, nil
}

// Logout revokes the saved token. A token the server no longer accepts is
// dropped locally as well.
func (a *authService) Logout(ctx context.Context) error {
	if !a.LoggedIn() {
		return ErrNotLoggedIn
	}

	if _, err := a.api.Logout(ctx); err != nil && !errors.Is(err, client.ErrUnauthorized) {
		return fmt.Errorf("logout error: %w", err)
	}

	if _, err := filex.RemoveIfExists(a.tokenFile); err != nil {
		return fmt.Errorf("removing token file: %w", err)
	}
	a.token = ""
	a.api.SetToken("")
	return nil
}
