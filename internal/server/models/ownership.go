package models

import "slices"

// Ownership is the durable many-to-many relation between users and
// credentials, plus the upstream endpoint each credential was added with.
//
// UserKeys lists each user's secrets in the order they were added. A user
// with no keys may be present with an empty slice.
type Ownership struct {
	UserKeys  map[string][]string
	Endpoints map[string]string
}

func NewOwnership() *Ownership {
	return &Ownership{
		UserKeys:  map[string][]string{},
		Endpoints: map[string]string{},
	}
}

// Clone returns a deep copy so callers can stage a mutation and discard it
// if persisting fails.
func (o *Ownership) Clone() *Ownership {
	c := NewOwnership()
	for uid, keys := range o.UserKeys {
		c.UserKeys[uid] = slices.Clone(keys)
	}
	for k, v := range o.Endpoints {
		c.Endpoints[k] = v
	}
	return c
}

// Owns reports whether userID owns secret.
func (o *Ownership) Owns(userID, secret string) bool {
	return slices.Contains(o.UserKeys[userID], secret)
}

// OwnerCount returns how many users own secret.
func (o *Ownership) OwnerCount(secret string) int {
	n := 0
	for _, keys := range o.UserKeys {
		if slices.Contains(keys, secret) {
			n++
		}
	}
	return n
}

// Secrets returns every owned secret once, ordered by user id and then by
// insertion order within a user.
func (o *Ownership) Secrets() []string {
	uids := make([]string, 0, len(o.UserKeys))
	for uid := range o.UserKeys {
		uids = append(uids, uid)
	}
	slices.Sort(uids)

	seen := map[string]struct{}{}
	var out []string
	for _, uid := range uids {
		for _, k := range o.UserKeys[uid] {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Link adds the (userID, secret) edge and reports whether the relation
// changed. The endpoint is recorded only the first time secret is seen.
func (o *Ownership) Link(userID, secret, endpoint string) bool {
	if _, ok := o.Endpoints[secret]; !ok && endpoint != "" {
		o.Endpoints[secret] = endpoint
	}
	if o.Owns(userID, secret) {
		return false
	}
	o.UserKeys[userID] = append(o.UserKeys[userID], secret)
	return true
}

// Unlink removes the (userID, secret) edge. When no owner remains the
// endpoint entry is dropped as well and orphaned is true.
func (o *Ownership) Unlink(userID, secret string) (removed, orphaned bool) {
	keys := o.UserKeys[userID]
	i := slices.Index(keys, secret)
	if i < 0 {
		return false, false
	}
	o.UserKeys[userID] = slices.Delete(slices.Clone(keys), i, i+1)

	if o.OwnerCount(secret) == 0 {
		delete(o.Endpoints, secret)
		return true, true
	}
	return true, false
}
