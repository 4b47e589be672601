// Package remote defines the contract the synchronization driver replays
// queued intents against, plus the shipped etcd-backed implementation. The
// central document store is an external collaborator; anything satisfying
// Store can stand in for it.
package remote

import (
	"context"
	"errors"
	"fmt"

	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
)

// ErrorKind classifies adapter failures for the driver.
type ErrorKind int

const (
	// KindTransient covers failures worth retrying on a later cycle
	// (rate limits, 5xx-equivalents, lost races).
	KindTransient ErrorKind = iota
	// KindPermanent covers validation and authorization failures that will
	// not succeed on retry. The driver still retry-counts them like
	// transient failures; the classification is surfaced for callers.
	KindPermanent
	// KindUnreachable means the store itself could not be reached. The
	// driver treats it as a connectivity signal, not an intent failure.
	KindUnreachable
)

// Error wraps a store failure with its classification.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnreachable reports whether err indicates the store could not be reached.
func IsUnreachable(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindUnreachable
}

// IsPermanent reports whether err is classified as non-retryable.
func IsPermanent(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindPermanent
}

// Store is the remote document store contract consumed by the driver and the
// cache refresher.
type Store interface {
	// Create inserts a new document and returns the server-assigned id.
	Create(ctx context.Context, kind string, payload []byte) (string, error)
	// Update replaces the document identified by a server id.
	Update(ctx context.Context, kind, id string, payload []byte) error
	// Delete removes a document; deleting an absent id is not an error.
	Delete(ctx context.Context, kind, id string) error
	// List returns all documents of a kind, for cache refresh.
	List(ctx context.Context, kind string) ([]v1.Record, error)
	// Ping checks reachability.
	Ping(ctx context.Context) error
}

// Locker guards a drain cycle against a second process draining the same
// queue. Drains only run while online, so the lock service is reachable
// exactly when a lock is needed.
type Locker interface {
	Lock(ctx context.Context) (func(), error)
}
