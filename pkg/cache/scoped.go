package cache

// ScopedKeyer wraps a Keyer with a prefix so multiple projects can
// share one backend without key collisions.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "simple-led:")
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

// OutputKey generates a prefixed key for an output command stream.
func (k *ScopedKeyer) OutputKey(file, digest string) string {
	return k.prefix + k.inner.OutputKey(file, digest)
}

// RenderKey generates a prefixed key for a layer preview.
func (k *ScopedKeyer) RenderKey(layer, digest string) string {
	return k.prefix + k.inner.RenderKey(layer, digest)
}
