package domain

// Backend is a host that can serve display sessions.
type Backend struct {
	ID string
	// Address is the backend's current private network address.
	Address string
	// Tags are the labels used to decide whether the backend is a session target.
	Tags map[string]string
}

// Reachable reports whether the backend currently has a network address.
// Stopped instances keep their id and tags but have none.
func (b *Backend) Reachable() bool {
	return b != nil && b.Address != ""
}

// Tag returns the value of tag key, or "" when unset.
func (b *Backend) Tag(key string) string {
	if b == nil || b.Tags == nil {
		return ""
	}
	return b.Tags[key]
}
