package jpdb

import (
	"context"
)

// CredentialSource supplies the jpdb API key. An empty key means none is set.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func(ctx context.Context) (string, error)

// APIKey calls f.
func (f CredentialFunc) APIKey(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticKey is a fixed API key.
type StaticKey string

// APIKey returns the key.
func (k StaticKey) APIKey(context.Context) (string, error) {
	return string(k), nil
}
