// Package pool implements the shared credential pool: the many-to-many
// relation between users and API keys, and the set of upstream handles
// built from it. A credential has a handle if and only if at least one
// user owns it.
package pool

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/zhusq20/APIFarm/internal/common"
	"github.com/zhusq20/APIFarm/internal/logging"
	"github.com/zhusq20/APIFarm/internal/server/models"
	"github.com/zhusq20/APIFarm/internal/server/upstream"
)

// RemoveStatus tells the caller what a successful removal did to the pool.
type RemoveStatus int

const (
	// RemovedFromPool means the caller was the last owner and the
	// credential is no longer dispatched to.
	RemovedFromPool RemoveStatus = iota + 1
	// StillShared means other users still own the credential, so only the
	// caller's ownership edge was dropped.
	StillShared
)

func (s RemoveStatus) String() string {
	switch s {
	case RemovedFromPool:
		return "removed_from_pool"
	case StillShared:
		return "still_shared"
	default:
		return "unknown"
	}
}

// OwnershipStore is the persistence the pool needs.
type OwnershipStore interface {
	LoadOwnership(ctx context.Context) (*models.Ownership, error)
	SaveOwnership(ctx context.Context, o *models.Ownership) error
}

// Pool is safe for concurrent use. One mutex covers the ownership
// relation, the registry and persistence, so check-then-mutate sequences
// cannot interleave.
type Pool struct {
	mu              sync.Mutex
	store           OwnershipStore
	factory         upstream.Factory
	registry        *upstream.Registry
	relation        *models.Ownership
	defaultEndpoint string
	logger          logging.Logger
}

func New(store OwnershipStore, factory upstream.Factory, defaultEndpoint string, logger logging.Logger) *Pool {
	return &Pool{
		store:           store,
		factory:         factory,
		registry:        upstream.NewRegistry(factory),
		relation:        models.NewOwnership(),
		defaultEndpoint: defaultEndpoint,
		logger:          logger.With("module", "pool"),
	}
}

// Load rebuilds the pool from the store. A failed load is logged and the
// pool starts empty; it never stops the server from starting.
func (p *Pool) Load(ctx context.Context) {
	o, err := p.store.LoadOwnership(ctx)
	if err != nil {
		p.logger.Warn(ctx, "could not load key ownership, starting with an empty pool",
			"error", fmt.Errorf("%w: %w", common.ErrPersistence, err))
		return
	}
	p.Restore(o)
	p.logger.Info(ctx, "key pool loaded", "keys", p.Size(), "users", len(o.UserKeys))
}

// Restore replaces the pool state with o, building one handle per
// distinct secret. Secrets without a recorded endpoint get the default.
func (p *Pool) Restore(o *models.Ownership) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := models.NewOwnership()
	if o != nil {
		next = o.Clone()
	}
	registry := upstream.NewRegistry(p.factory)
	for _, secret := range next.Secrets() {
		endpoint, ok := next.Endpoints[secret]
		if !ok || endpoint == "" {
			endpoint = p.defaultEndpoint
			next.Endpoints[secret] = endpoint
		}
		registry.Ensure(secret, endpoint)
	}

	p.relation = next
	p.registry = registry
}

// AddCredential makes userID an owner of secret. An unknown secret gets a
// new handle bound to endpoint (or the default endpoint when empty); for a
// known secret endpoint is ignored. Adding an edge that already exists is
// a no-op. added reports whether the relation changed.
func (p *Pool) AddCredential(ctx context.Context, userID, secret, endpoint string) (added bool, err error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return false, fmt.Errorf("%w: api_key must not be empty", common.ErrValidation)
	}
	if userID == "" {
		return false, fmt.Errorf("%w: empty user id", common.ErrValidation)
	}
	if endpoint = strings.TrimSpace(endpoint); endpoint == "" {
		endpoint = p.defaultEndpoint
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.relation.Clone()
	if !next.Link(userID, secret, endpoint) {
		return false, nil
	}

	if err := p.store.SaveOwnership(ctx, next); err != nil {
		return false, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	p.relation = next
	_, created := p.registry.Ensure(secret, next.Endpoints[secret])

	p.logger.Info(ctx, "key added", "user_id", userID, "key", upstream.Redact(secret), "new_handle", created)
	return true, nil
}

// RemoveCredential drops userID's ownership of secret. It fails with
// common.ErrNotOwned, leaving everything unchanged, if userID does not own
// secret. The handle is removed only when no owner remains.
func (p *Pool) RemoveCredential(ctx context.Context, userID, secret string) (RemoveStatus, error) {
	secret = strings.TrimSpace(secret)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.relation.Owns(userID, secret) {
		return 0, common.ErrNotOwned
	}

	next := p.relation.Clone()
	_, orphaned := next.Unlink(userID, secret)

	if err := p.store.SaveOwnership(ctx, next); err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	p.relation = next

	status := StillShared
	if orphaned {
		p.registry.Remove(secret)
		status = RemovedFromPool
	}

	p.logger.Info(ctx, "key removed", "user_id", userID, "key", upstream.Redact(secret), "status", status.String())
	return status, nil
}

// ListCredentials returns userID's secrets in the order they were added.
// Unknown users get an empty list.
func (p *Pool) ListCredentials(ctx context.Context, userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := slices.Clone(p.relation.UserKeys[userID])
	if keys == nil {
		keys = []string{}
	}
	return keys
}

// Snapshot returns every active handle in random order. The slice is the
// caller's; later pool mutations do not affect it.
func (p *Pool) Snapshot() []upstream.Handle {
	p.mu.Lock()
	handles := p.registry.Handles()
	p.mu.Unlock()

	rand.Shuffle(len(handles), func(i, j int) {
		handles[i], handles[j] = handles[j], handles[i]
	})
	return handles
}

// Size returns the number of active handles.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.Len()
}
