package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation. Useful
// when several diff sessions share one backend (e.g. the redis cache behind
// the HTTP server) and their entries must not collide.
//
// Example usage:
//
//	// Session-specific keys
//	sessionKeyer := NewScopedKeyer(NewDefaultKeyer(), "diff:abc123:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// LayoutKey generates a prefixed key for layout caching.
func (k *ScopedKeyer) LayoutKey(signature, side string) string {
	return k.prefix + k.inner.LayoutKey(signature, side)
}

// AlignKey generates a prefixed key for alignment caching.
func (k *ScopedKeyer) AlignKey(signature string) string {
	return k.prefix + k.inner.AlignKey(signature)
}

// IndexKey generates a prefixed key for derived-index caching.
func (k *ScopedKeyer) IndexKey(signature, side string, opts IndexKeyOpts) string {
	return k.prefix + k.inner.IndexKey(signature, side, opts)
}
