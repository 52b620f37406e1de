// Package models holds the records the credential store persists and the
// in-memory components rebuild from on startup.
package models

import "time"

// User is a registered identity. PasswordHash is a bcrypt hash.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
}

// Users is the user table keyed by username.
type Users map[string]User

// Clone returns an independent copy of the table.
func (u Users) Clone() Users {
	out := make(Users, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}
