// Package kv provides the durable key-value store that backs the ledger and
// the session store. Values are opaque JSON documents.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// ErrInvalidJSON is returned by a JSONStore for a value that is not a JSON document.
var ErrInvalidJSON = errors.New("kv: value is not valid JSON")

// Store persists whole documents under string keys.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// SetMany stores every pair. Backends with transactions apply all or none.
	SetMany(ctx context.Context, values map[string][]byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every stored key starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Prefixed scopes every key of an underlying store under a fixed prefix, so
// several logical stores can share one backend.
type Prefixed struct {
	inner  Store
	prefix string
}

var _ Store = (*Prefixed)(nil)

// WithPrefix returns a view of inner whose keys are prefix + key.
// A trailing "/" is added to prefix when missing.
func WithPrefix(inner Store, prefix string) *Prefixed {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Prefixed{inner: inner, prefix: prefix}
}

// Get implements Store.
func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

// Set implements Store.
func (p *Prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

// SetMany implements Store.
func (p *Prefixed) SetMany(ctx context.Context, values map[string][]byte) error {
	scoped := make(map[string][]byte, len(values))
	for k, v := range values {
		scoped[p.prefix+k] = v
	}
	return p.inner.SetMany(ctx, scoped)
}

// Delete implements Store.
func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}

// List implements Store. Returned keys are relative to the view's prefix.
func (p *Prefixed) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.inner.List(ctx, p.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, p.prefix)
	}
	return keys, nil
}

// JSONStore rejects writes that are not JSON documents, matching the
// Postgres JSONB payload column on every backend.
type JSONStore struct {
	Store
}

var _ Store = (*JSONStore)(nil)

// RequireJSON wraps inner so that Set and SetMany only accept valid JSON.
func RequireJSON(inner Store) *JSONStore {
	return &JSONStore{Store: inner}
}

// Set implements Store.
func (j *JSONStore) Set(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("set %s: %w", key, ErrInvalidJSON)
	}
	return j.Store.Set(ctx, key, value)
}

// SetMany implements Store.
// POST: nothing is written when any value is invalid
func (j *JSONStore) SetMany(ctx context.Context, values map[string][]byte) error {
	for k, v := range values {
		if !json.Valid(v) {
			return fmt.Errorf("set %s: %w", k, ErrInvalidJSON)
		}
	}
	return j.Store.SetMany(ctx, values)
}
