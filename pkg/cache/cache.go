// Package cache stores planned G-code command streams and rendered
// previews keyed by content digests, so unchanged artwork skips the
// parse/plan/emit pipeline entirely.
//
// Backends: file (CLI default), null (disabled), redis and mongo for
// shared deployments.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
// A miss is (nil, false, nil); errors are backend failures only.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer generates cache keys for the two cached artifact families:
// per-output command streams and rendered layer previews.
type Keyer interface {
	// OutputKey keys the encoded command stream of one output file.
	// The digest covers artwork bytes, resolved configuration, stage
	// descriptors and the tool version.
	OutputKey(file, digest string) string

	// RenderKey keys a rendered preview of one artwork layer.
	RenderKey(layer, digest string) string
}

// DefaultKeyer hashes key components into fixed-width keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// OutputKey generates a key for an output command stream.
func (k *DefaultKeyer) OutputKey(file, digest string) string {
	return hashKey("output", file, digest)
}

// RenderKey generates a key for a layer preview.
func (k *DefaultKeyer) RenderKey(layer, digest string) string {
	return hashKey("render", layer, digest)
}

// DefaultDir returns the platform cache directory for the file backend.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "pcbforge"), nil
}
