// Automod component for persisting raw per-tenant configuration documents.
//
// Stores hold opaque JSON bytes; validation and merging with defaults happens in the config package. Includes an interface and implementations using redis and in-process memory.
package configstore

import (
	"context"
)

type ConfigStore interface {
	// Returns the persisted document for the tenant, or nil (and no error) if there isn't one
	Load(ctx context.Context, tenantID string) ([]byte, error)
	Save(ctx context.Context, tenantID string, raw []byte) error
	Delete(ctx context.Context, tenantID string) error
}
