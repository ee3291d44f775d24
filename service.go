package blobgate

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"
)

// Storage is the capability contract every content adapter implements.
//
// Save must be atomic from an external observer's point of view: a partially
// written object must never become visible under its final key. Save fails
// with ErrConflict if content already exists at the derived key; it never
// silently overwrites. Get fails with ErrNotFound when no content exists.
// Delete is idempotent: deleting a non-existent key is not an error.
type Storage interface {
	Save(ctx context.Context, id string, data []byte) (SaveResult, error)
	Get(ctx context.Context, id string) (Object, error)
	Delete(ctx context.Context, id string) error
}

// MetadataRepo is the authoritative record store for blob attributes, keyed by
// blob id. Rows are write-once; no update operation exists.
type MetadataRepo interface {
	Exists(ctx context.Context, id string) (bool, error)

	// Create fails with ErrConflict if a row for meta.ID already exists. The
	// pre-check is re-verified against the store's own uniqueness constraint
	// to close the race between check and insert.
	Create(ctx context.Context, meta BlobMetadata) error

	// Get fails with ErrNotFound when no row exists for id.
	Get(ctx context.Context, id string) (BlobMetadata, error)
}

// UnitOfWork demarcates a transactional boundary around metadata writes, used
// only when the metadata store and the content store are the same transactional
// resource (the database backend). Non-transactional backends skip it; the
// service falls back to direct calls plus manual compensation.
type UnitOfWork interface {
	Begin(ctx context.Context) (WorkScope, error)
}

// WorkScope is one open transaction. Metadata returns a repository bound to
// the transaction; Commit and Rollback end it.
type WorkScope interface {
	Metadata() MetadataRepo
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// BlobService coordinates the two-store create/read protocol. Content and
// metadata cannot be written as one atomic operation across heterogeneous
// backends, so writes are ordered content-first, metadata-second, and a failed
// metadata write is compensated by deleting the orphaned content. That bounds
// the failure window to "content exists, metadata missing", which a retried
// save surfaces as an adapter-level conflict.
type BlobService struct {
	storage        Storage
	meta           MetadataRepo
	backend        Backend
	uow            UnitOfWork
	cleanupTimeout time.Duration
}

// ServiceConfig holds construction options for BlobService.
type ServiceConfig struct {
	// Backend tags metadata rows with the adapter that holds the bytes.
	Backend Backend
	// UnitOfWork is set only for the database backend, where metadata and
	// content share one transactional store.
	UnitOfWork UnitOfWork
	// CleanupTimeout bounds the compensating delete (default 30s).
	CleanupTimeout time.Duration
}

func NewBlobService(meta MetadataRepo, storage Storage, cfg ServiceConfig) (*BlobService, error) {
	if !cfg.Backend.IsValid() {
		return nil, fmt.Errorf("new blob service: invalid backend: %s", cfg.Backend)
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &BlobService{
		storage:        storage,
		meta:           meta,
		backend:        cfg.Backend,
		uow:            cfg.UnitOfWork,
		cleanupTimeout: cleanupTimeout,
	}, nil
}

// Save creates a blob from a base64 payload under an at-most-once guarantee.
//
// The metadata existence check runs before any content write so that simple
// duplicate submissions never create orphaned content; a concurrent racer that
// slips past it is caught again at the adapter and at the metadata uniqueness
// constraint. On a metadata failure after a successful content write, the
// content is deleted best-effort and the original error is returned.
//
// Error kinds: ErrConflict (duplicate id at either layer), ErrBadRequest
// (invalid id or undecodable payload); anything else is a backend failure.
func (s *BlobService) Save(ctx context.Context, id string, dataB64 string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, fmt.Errorf("save blob: %w", err)
	}

	if err := ValidateID(id); err != nil {
		return Blob{}, fmt.Errorf("save blob: %w", err)
	}

	exists, err := s.meta.Exists(ctx, id)
	if err != nil {
		return Blob{}, fmt.Errorf("save blob %q: check metadata: %w", id, err)
	}
	if exists {
		return Blob{}, fmt.Errorf("save blob %q: %w: id already exists", id, ErrConflict)
	}

	raw, err := base64.StdEncoding.Strict().DecodeString(dataB64)
	if err != nil {
		return Blob{}, fmt.Errorf("save blob %q: %w: invalid base64 data", id, ErrBadRequest)
	}

	checksum := ChecksumHex(raw)

	saved, err := s.storage.Save(ctx, id, raw)
	if err != nil {
		// Includes the adapter-level conflict a raced metadata check missed;
		// no metadata is written in that case.
		return Blob{}, fmt.Errorf("save blob %q: write content: %w", id, err)
	}

	createdAt := normalizeTimestamp(saved.CreatedAt)
	meta := BlobMetadata{
		ID:        id,
		Size:      saved.Size,
		CreatedAt: createdAt,
		Backend:   s.backend,
		Checksum:  checksum,
	}

	if err := s.writeMetadata(ctx, meta); err != nil {
		s.compensate(id)
		return Blob{}, fmt.Errorf("save blob %q: write metadata: %w", id, err)
	}

	return Blob{ID: id, Data: raw, Size: saved.Size, CreatedAt: createdAt}, nil
}

// writeMetadata records the blob row, inside the unit-of-work when one is
// configured.
func (s *BlobService) writeMetadata(ctx context.Context, meta BlobMetadata) error {
	if s.uow == nil {
		return s.meta.Create(ctx, meta)
	}

	scope, err := s.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	if err := scope.Metadata().Create(ctx, meta); err != nil {
		if rbErr := scope.Rollback(ctx); rbErr != nil {
			slog.Warn("metadata rollback failed", "id", meta.ID, "err", rbErr)
		}
		return err
	}
	if err := scope.Commit(ctx); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

// compensate deletes just-written content after a metadata failure. The delete
// is best-effort: its own failure is logged and swallowed so it never masks
// the error that already explains the failure to the caller. A background
// context keeps the cleanup alive even when the request context is gone.
func (s *BlobService) compensate(id string) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	if err := s.storage.Delete(cleanupCtx, id); err != nil {
		slog.Warn("compensating content delete failed", "id", id, "err", err)
	}
}

// Get reads a blob. Metadata, not content, is the existence oracle: a missing
// row is ErrNotFound before the content backend is contacted, and the returned
// timestamp is the one recorded at save time, so backend-side timestamp drift
// (an mtime touched by an external cause, say) never alters what callers see.
func (s *BlobService) Get(ctx context.Context, id string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, fmt.Errorf("get blob: %w", err)
	}

	meta, err := s.meta.Get(ctx, id)
	if err != nil {
		return Blob{}, fmt.Errorf("get blob %q: %w", id, err)
	}

	obj, err := s.storage.Get(ctx, id)
	if err != nil {
		return Blob{}, fmt.Errorf("get blob %q: read content: %w", id, err)
	}

	return Blob{ID: id, Data: obj.Data, Size: obj.Size, CreatedAt: meta.CreatedAt}, nil
}

// normalizeTimestamp coerces an adapter-reported creation time to UTC at
// second precision, defaulting to now when the adapter reported nothing.
func normalizeTimestamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Second)
}

// FormatTimestamp renders a timestamp the way the API reports created_at:
// ISO-8601, UTC with 'Z' suffix, second precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
