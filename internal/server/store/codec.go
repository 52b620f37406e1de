package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zhusq20/APIFarm/internal/cryptox"
	"github.com/zhusq20/APIFarm/internal/server/models"
)

// userRecord is one entry of users.json. Password is only read: files
// written by older deployments stored it in plaintext, and it is hashed
// on load.
type userRecord struct {
	UserID       string `json:"user_id"`
	PasswordHash string `json:"password_hash,omitempty"`
	Password     string `json:"password,omitempty"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// ownershipRecord is the shape of keys.json.
type ownershipRecord struct {
	UserKeys  map[string][]string `json:"user_keys"`
	Endpoints map[string]string   `json:"endpoints,omitempty"`
}

func encodeUsers(users models.Users) ([]byte, error) {
	out := make(map[string]userRecord, len(users))
	for name, u := range users {
		rec := userRecord{UserID: u.ID, PasswordHash: u.PasswordHash}
		if !u.CreatedAt.IsZero() {
			rec.CreatedAt = u.CreatedAt.Unix()
		}
		out[name] = rec
	}
	return json.Marshal(out)
}

// decodeUsers parses users.json. A record that cannot be used is skipped
// and reported in the returned error; the remaining users are returned
// alongside it. A nil map means the file itself is unreadable.
func decodeUsers(data []byte) (models.Users, error) {
	var in map[string]userRecord
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}

	users := make(models.Users, len(in))
	var errs []error
	for name, rec := range in {
		u, err := decodeUser(name, rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %q: %w", name, err))
			continue
		}
		users[name] = u
	}
	return users, errors.Join(errs...)
}

func decodeUser(name string, rec userRecord) (models.User, error) {
	if rec.UserID == "" {
		return models.User{}, errors.New("missing user_id")
	}

	hash := rec.PasswordHash
	switch {
	case hash != "":
	case cryptox.IsHash(rec.Password):
		hash = rec.Password
	default:
		h, err := cryptox.HashPassword(rec.Password)
		if err != nil {
			return models.User{}, fmt.Errorf("hash legacy password: %w", err)
		}
		hash = h
	}

	u := models.User{ID: rec.UserID, UserName: name, PasswordHash: hash}
	if rec.CreatedAt != 0 {
		u.CreatedAt = time.Unix(rec.CreatedAt, 0).UTC()
	}
	return u, nil
}

func encodeOwnership(o *models.Ownership) ([]byte, error) {
	rec := ownershipRecord{UserKeys: o.UserKeys, Endpoints: o.Endpoints}
	if rec.UserKeys == nil {
		rec.UserKeys = map[string][]string{}
	}
	return json.Marshal(rec)
}

func decodeOwnership(data []byte) (*models.Ownership, error) {
	var rec ownershipRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	o := models.NewOwnership()
	for uid, keys := range rec.UserKeys {
		o.UserKeys[uid] = append([]string{}, keys...)
	}
	for k, v := range rec.Endpoints {
		o.Endpoints[k] = v
	}
	return o, nil
}
