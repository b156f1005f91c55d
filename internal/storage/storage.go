package storage

import (
	"context"

	"github.com/nao1215/spiderq/internal/model"
)

// Storage is the contract between a DurableScheduler and its backing store.
//
// Deduplication and claiming are the store's job, not the caller's: the key
// column is UNIQUE, and PullItems selects and marks records in one atomic
// step, so any number of adapters opened on the same partition (in one
// process or many) never receive the same record twice. Two names that
// sanitize to the same string share a partition; distinct sanitized names
// never see each other's records.
type Storage interface {
	// SetNamespace sanitizes name and binds the adapter to that partition,
	// creating it if needed.
	SetNamespace(ctx context.Context, name string) error

	// Namespace returns the sanitized partition the adapter is bound to.
	Namespace() string

	// PushItem stores req under key. It returns inserted=false when a
	// record with the same key already exists.
	PushItem(ctx context.Context, req *model.Request, key string) (inserted bool, err error)

	// PullItems claims up to batchSize of the oldest pending records,
	// marks them taken and returns them in insertion order. A batchSize
	// below one returns ErrInvalidBatchSize.
	//
	// Records whose payload cannot be decoded stay taken and are left out
	// of the result; the decodable ones are returned together with a
	// *SkippedError.
	PullItems(ctx context.Context, batchSize int) ([]*model.Request, error)

	// IsEmpty reports whether no pending record remains.
	IsEmpty(ctx context.Context) (bool, error)

	// Purge deletes every record of the current partition.
	Purge(ctx context.Context) error

	// Stats counts pending and taken records of the current partition.
	Stats(ctx context.Context) (model.QueueStats, error)

	// Close releases the underlying connection.
	Close() error
}
