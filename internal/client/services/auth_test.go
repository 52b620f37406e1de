package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhusq20/APIFarm/internal/client/client"
)

// ---- fake api ----

type fakeAPI struct {
	registerOut *client.RegisterResult
	registerErr error

	loginToken string
	loginUID   string
	loginErr   error
	loginCalls int

	logoutErr   error
	logoutCalls int

	token string
}

func (f *fakeAPI) Register(context.Context, string, string) (*client.RegisterResult, error) {
	return f.registerOut, f.registerErr
}

func (f *fakeAPI) Login(context.Context, string, string) (string, string, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return "", "", f.loginErr
	}
	f.token = f.loginToken
	return f.loginToken, f.loginUID, nil
}

func (f *fakeAPI) Logout(context.Context) (string, error) {
	f.logoutCalls++
	return "Logged out successfully", f.logoutErr
}

func (f *fakeAPI) SetToken(token string) { f.token = token }

func tokenPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".auth_token")
}

// ---- tests ----

func TestNewAuthService_LoadsSavedToken(t *testing.T) {
	path := tokenPath(t)
	require.NoError(t, os.WriteFile(path, []byte("saved-token\n"), 0o600))

	api := &fakeAPI{}
	svc, err := NewAuthService(api, path)
	require.NoError(t, err)
	assert.True(t, svc.LoggedIn())
	assert.Equal(t, "saved-token", api.token)
}

func TestLogin_SavesToken(t *testing.T) {
	path := tokenPath(t)
	api := &fakeAPI{loginToken: "tok", loginUID: "u1"}
	svc, err := NewAuthService(api, path)
	require.NoError(t, err)
	require.False(t, svc.LoggedIn())

	uid, err := svc.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
	assert.True(t, svc.LoggedIn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tok", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLogin_RefusesWhenTokenSaved(t *testing.T) {
	path := tokenPath(t)
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	api := &fakeAPI{loginToken: "new"}
	svc, err := NewAuthService(api, path)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, ErrAlreadyLoggedIn)
	assert.Zero(t, api.loginCalls)
}

func TestLogin_ServerError(t *testing.T) {
	path := tokenPath(t)
	api := &fakeAPI{loginErr: client.ErrUnauthorized}
	svc, err := NewAuthService(api, path)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "alice", "bad")
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, svc.LoggedIn())
	assert.NoFileExists(t, path)
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name      string
		logoutErr error
		wantErr   bool
		wantFile  bool
	}{
		{name: "ok"},
		{name: "token already revoked", logoutErr: client.ErrUnauthorized},
		{name: "server down", logoutErr: client.ErrUnavailable, wantErr: true, wantFile: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tokenPath(t)
			require.NoError(t, os.WriteFile(path, []byte("tok"), 0o600))

			api := &fakeAPI{logoutErr: tt.logoutErr}
			svc, err := NewAuthService(api, path)
			require.NoError(t, err)

			err = svc.Logout(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			if tt.wantFile {
				assert.FileExists(t, path)
				assert.True(t, svc.LoggedIn())
			} else {
				assert.NoFileExists(t, path)
				assert.False(t, svc.LoggedIn())
				assert.Empty(t, api.token)
			}
		})
	}
}

func TestLogout_NotLoggedIn(t *testing.T) {
	api := &fakeAPI{}
	svc, err := NewAuthService(api, tokenPath(t))
	require.NoError(t, err)

	err = svc.Logout(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Zero(t, api.logoutCalls)
}

func TestRegister_Passthrough(t *testing.T) {
	want := &client.RegisterResult{UserID: "u1", Created: true}
	api := &fakeAPI{registerOut: want}
	svc, err := NewAuthService(api, tokenPath(t))
	require.NoError(t, err)

	got, err := svc.Register(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Same(t, want, got)

	api.registerErr = errors.New("boom")
	_, err = svc.Register(context.Background(), "alice", "pw")
	assert.Error(t, err)
}
