package redis

import (
	"context"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
)

// DefaultFingerprintPrefix namespaces fingerprint keys.
const DefaultFingerprintPrefix = "medingest:fp:"

// FingerprintIndex stores fingerprints as Redis keys set with SET NX.
type FingerprintIndex struct {
	client kvClient
	prefix string
	ttl    time.Duration
}

var _ storage.FingerprintIndex = (*FingerprintIndex)(nil)

// NewFingerprintIndex connects to Redis at addr.
// A ttl of zero keeps fingerprints forever.
func NewFingerprintIndex(addr, prefix string, ttl time.Duration) *FingerprintIndex {
	return newFingerprintIndex(newRedisClient(addr), prefix, ttl)
}

func newFingerprintIndex(client kvClient, prefix string, ttl time.Duration) *FingerprintIndex {
	if prefix == "" {
		prefix = DefaultFingerprintPrefix
	}
	return &FingerprintIndex{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Close closes the Redis client.
func (f *FingerprintIndex) Close() error {
	return f.client.Close()
}

// Contains reports whether the fingerprint is present.
func (f *FingerprintIndex) Contains(ctx context.Context, fp core.Fingerprint) (bool, error) {
	found, err := f.client.Exists(ctx, f.prefix+string(fp))
	if err != nil {
		return false, core.MarkTransientWrite(err)
	}
	return found, nil
}

// Add inserts the fingerprint. Returns true if this call set the key.
func (f *FingerprintIndex) Add(ctx context.Context, fp core.Fingerprint) (bool, error) {
	ok, err := f.client.SetNX(ctx, f.prefix+string(fp), "1", f.ttl)
	if err != nil {
		return false, core.MarkTransientWrite(err)
	}
	return ok, nil
}
