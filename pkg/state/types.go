package state

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/zeebo/blake3"
)

// ErrETagMismatch signals a concurrent writer changed the snapshot between
// load and save.
var ErrETagMismatch = errors.New("state: etag mismatch")

var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Ref identifies one persisted snapshot for one configuration domain. Name
// is optional and addresses a sub-document within the domain, such as a
// profile id inside the profiles domain.
type Ref struct {
	Domain string
	Name   string
}

// Identifier returns the canonical storage key for the reference. Segments
// are restricted to lowercase names safe for filesystem paths.
func (r Ref) Identifier() (string, error) {
	if !identifierPattern.MatchString(r.Domain) {
		return "", fmt.Errorf("state: invalid domain %q", r.Domain)
	}
	if r.Name == "" {
		return r.Domain, nil
	}
	if !identifierPattern.MatchString(r.Name) {
		return "", fmt.Errorf("state: invalid name %q", r.Name)
	}
	return r.Domain + "/" + r.Name, nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Store loads, saves, and deletes one snapshot per reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
	Delete(ctx context.Context, ref Ref) error
}

// Mutator edits a snapshot in place during Mutate.
type Mutator[T any] func(*T) error

// Mutate loads the snapshot for ref, applies fn, and saves the result. When
// meta carries an ETag it must match the stored snapshot's ETag or the
// mutation fails with ErrETagMismatch before fn runs.
func Mutate[T any](ctx context.Context, store Store[T], ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q: %w", ref.Domain, err)
	}
	if !ok {
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loadedMeta, err
	}

	savedMeta, err := store.Save(ctx, ref, snapshot, mergeMeta(loadedMeta, meta))
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("state: save %q: %w", ref.Domain, err)
	}
	return snapshot, savedMeta, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

// Fingerprint returns the hex-encoded BLAKE3 hash of data. It is the
// canonical content identity used for ETags and change detection.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
