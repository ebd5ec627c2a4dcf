// Package cache provides the caching layer for computed layouts and
// derived indexes.
//
// Results are keyed by content signature (see pkg/engine), so an identical
// input graph, file snapshot, and view-parameter set always maps to the
// same key regardless of object identity. Several backends implement the
// Cache interface:
//   - memory: bounded in-process LRU, the engine's default
//   - file: on-disk entries for CLI reuse across invocations
//   - redis: shared cache for multi-instance server deployments
//   - null: no-op, for tests and disabling caching
package cache

import (
	"context"
	"time"
)

// Cache is the minimal backend interface. Get reports (data, hit, error);
// a miss is not an error. Set with ttl 0 stores without expiration.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer builds cache keys for the different result families.
type Keyer interface {
	// LayoutKey keys a positioned layout by its content signature and side.
	LayoutKey(signature, side string) string

	// AlignKey keys the breakpoint set for a signature.
	AlignKey(signature string) string

	// IndexKey keys a derived-index result, including the search query
	// parameters that shaped it.
	IndexKey(signature, side string, opts IndexKeyOpts) string
}

// IndexKeyOpts are the parameters that distinguish derived-index results
// computed from the same layout.
type IndexKeyOpts struct {
	Query   string `json:"query"`
	Exclude bool   `json:"exclude"`
}

// DefaultKeyer is the standard key scheme.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

// LayoutKey generates a key for layout caching.
func (k *DefaultKeyer) LayoutKey(signature, side string) string {
	return "layout:" + side + ":" + signature
}

// AlignKey generates a key for alignment breakpoint caching.
func (k *DefaultKeyer) AlignKey(signature string) string {
	return "align:" + signature
}

// IndexKey generates a key for derived-index caching.
func (k *DefaultKeyer) IndexKey(signature, side string, opts IndexKeyOpts) string {
	return hashKey("index:"+side+":"+signature, opts)
}
