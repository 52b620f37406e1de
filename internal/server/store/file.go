package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/zhusq20/APIFarm/internal/filex"
	"github.com/zhusq20/APIFarm/internal/server/models"
)

const (
	usersFileName = "users.json"
	keysFileName  = "keys.json"
)

// FileStore keeps users.json and keys.json in a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: abs}, nil
}

func (s *FileStore) LoadUsers(ctx context.Context) (models.Users, error) {
	data, ok, err := filex.ReadFileIfExists(filepath.Join(s.dir, usersFileName))
	if err != nil {
		return nil, err
	}
	if !ok {
		return models.Users{}, nil
	}
	users, err := decodeUsers(data)
	if err != nil {
		return users, fmt.Errorf("%s: %w", usersFileName, err)
	}
	return users, nil
}

func (s *FileStore) SaveUsers(ctx context.Context, users models.Users) error {
	data, err := encodeUsers(users)
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(filepath.Join(s.dir, usersFileName), data, 0o600)
}

func (s *FileStore) LoadOwnership(ctx context.Context) (*models.Ownership, error) {
	data, ok, err := filex.ReadFileIfExists(filepath.Join(s.dir, keysFileName))
	if err != nil {
		return nil, err
	}
	if !ok {
		return models.NewOwnership(), nil
	}
	o, err := decodeOwnership(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keysFileName, err)
	}
	return o, nil
}

func (s *FileStore) SaveOwnership(ctx context.Context, o *models.Ownership) error {
	data, err := encodeOwnership(o)
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(filepath.Join(s.dir, keysFileName), data, 0o600)
}

func (s *FileStore) Close() error { return nil }
