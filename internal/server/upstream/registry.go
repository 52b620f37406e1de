package upstream

// Registry keeps one Handle per credential in insertion order.
// It is not safe for concurrent use; the key pool serializes access.
type Registry struct {
	factory Factory
	handles map[string]Handle
	order   []string
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, handles: map[string]Handle{}}
}

// Ensure returns the handle for secret, building it against endpoint the
// first time the secret is seen. created reports whether a handle was built.
func (r *Registry) Ensure(secret, endpoint string) (h Handle, created bool) {
	if h, ok := r.handles[secret]; ok {
		return h, false
	}
	h = r.factory(endpoint, secret)
	r.handles[secret] = h
	r.order = append(r.order, secret)
	return h, true
}

// Remove drops the handle for secret and reports whether it existed.
func (r *Registry) Remove(secret string) bool {
	if _, ok := r.handles[secret]; !ok {
		return false
	}
	delete(r.handles, secret)
	for i, s := range r.order {
		if s == secret {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Handles returns a fresh slice of all handles in insertion order.
func (r *Registry) Handles() []Handle {
	out := make([]Handle, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, r.handles[s])
	}
	return out
}

func (r *Registry) Len() int { return len(r.handles) }
