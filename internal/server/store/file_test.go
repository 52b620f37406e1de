package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhusq20/APIFarm/internal/cryptox"
	"github.com/zhusq20/APIFarm/internal/server/models"
)

func sampleOwnership() *models.Ownership {
	o := models.NewOwnership()
	o.Link("u-1", "nvapi-a", "https://integrate.api.nvidia.com/v1")
	o.Link("u-1", "nvapi-b", "http://llm.local/v1")
	o.Link("u-2", "nvapi-a", "")
	o.UserKeys["u-3"] = []string{}
	return o
}

func sampleUsers(t *testing.T) models.Users {
	t.Helper()
	h, err := cryptox.HashPassword("pw")
	require.NoError(t, err)
	return models.Users{
		"alice": {ID: "u-1", UserName: "alice", PasswordHash: h, CreatedAt: time.Unix(1700000000, 0).UTC()},
		"bob":   {ID: "u-2", UserName: "bob", PasswordHash: h},
	}
}

func TestFileStore_EmptyDirectoryLoadsEmpty(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	users, err := s.LoadUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)

	o, err := s.LoadOwnership(context.Background())
	require.NoError(t, err)
	assert.Empty(t, o.UserKeys)
}

func TestFileStore_ReloadReproducesRecords(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	users := sampleUsers(t)
	require.NoError(t, s.SaveUsers(ctx, users))
	require.NoError(t, s.SaveOwnership(ctx, sampleOwnership()))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)

	gotUsers, err := reopened.LoadUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, users, gotUsers)

	gotOwn, err := reopened.LoadOwnership(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nvapi-a", "nvapi-b"}, gotOwn.UserKeys["u-1"])
	assert.Equal(t, []string{"nvapi-a"}, gotOwn.UserKeys["u-2"])
	assert.Equal(t, "http://llm.local/v1", gotOwn.Endpoints["nvapi-b"])
	assert.Contains(t, gotOwn.UserKeys, "u-3")
}

func TestFileStore_SaveRewritesInFull(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveOwnership(ctx, sampleOwnership()))

	o := models.NewOwnership()
	o.Link("u-9", "nvapi-z", "e")
	require.NoError(t, s.SaveOwnership(ctx, o))

	got, err := s.LoadOwnership(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"u-9": {"nvapi-z"}}, got.UserKeys)
}

func TestFileStore_ReadsLegacyFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"),
		[]byte(`{"alice": {"password": "pw1", "user_id": "u-1"}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keys.json"),
		[]byte(`{"user_keys": {"u-1": ["nvapi-a", "nvapi-b"]}}`), 0o600))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	users, err := s.LoadUsers(context.Background())
	require.NoError(t, err)
	require.Contains(t, users, "alice")
	assert.Equal(t, "u-1", users["alice"].ID)
	assert.True(t, cryptox.CheckPassword(users["alice"].PasswordHash, "pw1"), "plaintext password must be hashed on load")

	o, err := s.LoadOwnership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"nvapi-a", "nvapi-b"}, o.UserKeys["u-1"])
	assert.Empty(t, o.Endpoints)
}

func TestFileStore_CorruptFilesFail(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte(`{broken`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keys.json"), []byte(`[]`), 0o600))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.LoadUsers(context.Background())
	require.Error(t, err)

	_, err = s.LoadOwnership(context.Background())
	require.Error(t, err)
}

func TestFileStore_ReadsLegacyLongPasswords(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("p", 80)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"),
		[]byte(`{"alice": {"password": "short", "user_id": "u1"}, "bob": {"password": "`+long+`", "user_id": "u2"}}`), 0o600))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	users, err := s.LoadUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, cryptox.CheckPassword(users["alice"].PasswordHash, "short"))
	assert.True(t, cryptox.CheckPassword(users["bob"].PasswordHash, long))
}

func TestFileStore_LegacyHashInPasswordField(t *testing.T) {
	hash, err := cryptox.HashPassword("pw")
	require.NoError(t, err)

	users, err := decodeUsers([]byte(`{"alice": {"password": "` + hash + `", "user_id": "u1"}}`))
	require.NoError(t, err)
	assert.Equal(t, hash, users["alice"].PasswordHash)
}

func TestDecodeUsers_BadRecordKeepsOthers(t *testing.T) {
	users, err := decodeUsers([]byte(`{"alice": {"password_hash": "x"}, "bob": {"password": "pw", "user_id": "u2"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `user "alice": missing user_id`)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users["bob"].ID)
}

func TestFileStore_BadRecordKeepsOthers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"),
		[]byte(`{"alice": {"password": "pw"}, "bob": {"password": "pw", "user_id": "u2"}}`), 0o600))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	users, err := s.LoadUsers(context.Background())
	require.Error(t, err)
	assert.Contains(t, users, "bob")
	assert.NotContains(t, users, "alice")
}
