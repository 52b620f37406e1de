// Package sessions owns user identities and login sessions: registration,
// password checks, token issue and revocation, and token resolution.
package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhusq20/APIFarm/internal/common"
	"github.com/zhusq20/APIFarm/internal/cryptox"
	"github.com/zhusq20/APIFarm/internal/logging"
	"github.com/zhusq20/APIFarm/internal/server/auth"
	"github.com/zhusq20/APIFarm/internal/server/models"
)

// UserStore is the persistence the manager needs.
type UserStore interface {
	LoadUsers(ctx context.Context) (models.Users, error)
	SaveUsers(ctx context.Context, users models.Users) error
}

// Manager is safe for concurrent use. The user table is guarded by mu;
// the token table synchronizes itself.
type Manager struct {
	mu        sync.Mutex
	users     models.Users
	store     UserStore
	tokens    TokenStore
	secretKey []byte
	tokenTTL  time.Duration
	logger    logging.Logger

	newUserID func() string
	now       func() time.Time
}

func NewManager(store UserStore, tokens TokenStore, secretKey string, tokenTTL time.Duration, logger logging.Logger) *Manager {
	return &Manager{
		users:     models.Users{},
		store:     store,
		tokens:    tokens,
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		logger:    logger.With("module", "sessions"),
		newUserID: uuid.NewString,
		now:       time.Now,
	}
}

// Load replaces the user table with the stored one. If the store returns
// users together with an error, the users it could read are kept and the
// error is logged. A load that returns no users is logged and the manager
// starts with no users.
func (m *Manager) Load(ctx context.Context) {
	users, err := m.store.LoadUsers(ctx)
	if err != nil && users == nil {
		m.logger.Warn(ctx, "could not load users, starting with an empty user table",
			"error", fmt.Errorf("%w: %w", common.ErrPersistence, err))
		return
	}
	if err != nil {
		m.logger.Warn(ctx, "some user records were skipped",
			"error", fmt.Errorf("%w: %w", common.ErrPersistence, err))
	}

	m.mu.Lock()
	m.users = users.Clone()
	m.mu.Unlock()

	m.logger.Info(ctx, "users loaded", "count", len(users))
}

// Register creates a user. Registering an existing username is not an
// error: the existing id is returned with created set to false, and the
// password is not checked or changed.
func (m *Manager) Register(ctx context.Context, username, password string) (userID string, created bool, err error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", false, fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[username]; ok {
		return u.ID, false, nil
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return "", false, fmt.Errorf("error hashing password: %w", err)
	}

	u := models.User{
		ID:           m.newUserID(),
		UserName:     username,
		PasswordHash: hash,
		CreatedAt:    m.now().UTC(),
	}

	next := m.users.Clone()
	next[username] = u
	if err := m.store.SaveUsers(ctx, next); err != nil {
		return "", false, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	m.users = next

	m.logger.Info(ctx, "user registered", "user_id", u.ID, "username", username)
	return u.ID, true, nil
}

// Login checks the password and issues a new session token. Unknown users
// and wrong passwords both yield common.ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, username, password string) (token, userID string, err error) {
	m.mu.Lock()
	u, ok := m.users[strings.TrimSpace(username)]
	m.mu.Unlock()

	if !ok || !cryptox.CheckPassword(u.PasswordHash, password) {
		return "", "", common.ErrInvalidCredentials
	}

	tokenID, err := common.MakeRandHexString(16)
	if err != nil {
		return "", "", fmt.Errorf("error generating token id: %w", err)
	}
	token, err = auth.GenerateToken(u.ID, tokenID, m.secretKey, m.tokenTTL)
	if err != nil {
		return "", "", fmt.Errorf("error signing token: %w", err)
	}
	if err := m.tokens.Put(ctx, token, u.ID, m.tokenTTL); err != nil {
		return "", "", fmt.Errorf("error storing session: %w", err)
	}

	m.logger.Info(ctx, "user logged in", "user_id", u.ID)
	return token, u.ID, nil
}

// Logout revokes token. It reports false, without error, when the token
// was not active.
func (m *Manager) Logout(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	removed, err := m.tokens.Delete(ctx, token)
	if err != nil {
		return false, fmt.Errorf("error removing session: %w", err)
	}
	if removed {
		m.logger.Info(ctx, "user logged out")
	}
	return removed, nil
}

// Resolve returns the user bound to an active token, or
// common.ErrInvalidToken.
func (m *Manager) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrUnauthorized
	}

	claims, err := auth.ParseToken(token, m.secretKey)
	if err != nil {
		return "", err
	}

	userID, ok, err := m.tokens.Get(ctx, token)
	if err != nil {
		return "", fmt.Errorf("error reading session: %w", err)
	}
	if !ok || userID != claims.UserID {
		return "", common.ErrInvalidToken
	}
	return userID, nil
}

// UserCount returns the number of registered users.
func (m *Manager) UserCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// Close releases the token table.
func (m *Manager) Close() error {
	return m.tokens.Close()
}
