package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const RecordRootPrefix = "/opsoms/records/"

var ErrRecordNotFound = errors.New("record not found")

// EtcdInterface is the slice of the etcd client the store uses; tests swap in
// a partial mock.
type EtcdInterface interface {
	clientv3.KV
	Close() error
}

// EtcdStore implements Store against the central etcd document store.
// Documents live under /opsoms/records/<kind>/<id> as JSON values.
type EtcdStore struct {
	client EtcdInterface
}

func NewEtcdStore(client EtcdInterface) *EtcdStore {
	return &EtcdStore{client: client}
}

func recordKey(kind, id string) string {
	return fmt.Sprintf("%s%s/%s", RecordRootPrefix, kind, id)
}

// Create inserts the document under a fresh server-assigned id. The put is a
// CreateRevision=0 transaction, so replaying the same create after a lost
// acknowledgement can never clobber another document.
func (s *EtcdStore) Create(ctx context.Context, kind string, payload []byte) (string, error) {
	const maxAttempts = 3

	for attempt := 0; attempt < maxAttempts; attempt++ {
		id := uuid.New().String()
		key := recordKey(kind, id)

		txn := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, string(payload)))

		resp, err := txn.Commit()
		if err != nil {
			return "", s.wrap("create", err)
		}
		if resp.Succeeded {
			return id, nil
		}
		// uuid collision; practically unreachable but loop anyway
	}
	return "", &Error{Kind: KindTransient, Op: "create", Err: errors.New("id allocation kept colliding")}
}

// Update replaces an existing document. Updating an id the store has never
// seen is a permanent failure, not a create.
func (s *EtcdStore) Update(ctx context.Context, kind, id string, payload []byte) error {
	key := recordKey(kind, id)

	txn := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), ">", 0)).
		Then(clientv3.OpPut(key, string(payload)))

	resp, err := txn.Commit()
	if err != nil {
		return s.wrap("update", err)
	}
	if !resp.Succeeded {
		return &Error{Kind: KindPermanent, Op: "update", Err: ErrRecordNotFound}
	}
	return nil
}

func (s *EtcdStore) Delete(ctx context.Context, kind, id string) error {
	_, err := s.client.Delete(ctx, recordKey(kind, id))
	if err != nil {
		return s.wrap("delete", err)
	}
	return nil
}

func (s *EtcdStore) List(ctx context.Context, kind string) ([]v1.Record, error) {
	prefix := RecordRootPrefix + kind + "/"
	resp, err := s.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, s.wrap("list", err)
	}

	records := make([]v1.Record, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id := strings.TrimPrefix(string(kv.Key), prefix)
		records = append(records, v1.Record{
			Kind:    kind,
			ID:      id,
			Payload: append([]byte(nil), kv.Value...),
		})
	}
	return records, nil
}

func (s *EtcdStore) Ping(ctx context.Context) error {
	_, err := s.client.Get(ctx, RecordRootPrefix, clientv3.WithKeysOnly(), clientv3.WithLimit(1))
	if err != nil {
		return s.wrap("ping", err)
	}
	return nil
}

// wrap classifies an etcd client error by its grpc status code.
func (s *EtcdStore) wrap(op string, err error) error {
	kind := KindTransient
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindUnreachable
	default:
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded:
			kind = KindUnreachable
		case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition:
			kind = KindPermanent
		}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// DrainLock is a Locker backed by an etcd concurrency mutex, for deployments
// where two processes share one local queue database.
type DrainLock struct {
	client  *clientv3.Client
	name    string
	timeout time.Duration
}

func NewDrainLock(client *clientv3.Client, deviceID string) *DrainLock {
	return &DrainLock{
		client:  client,
		name:    "/opsoms/locks/drain/" + deviceID,
		timeout: 5 * time.Second,
	}
}

func (d *DrainLock) Lock(ctx context.Context) (func(), error) {
	session, err := concurrency.NewSession(d.client, concurrency.WithTTL(10))
	if err != nil {
		return nil, fmt.Errorf("failed to create drain lock session: %w", err)
	}

	mutex := concurrency.NewMutex(session, d.name)
	lockCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := mutex.Lock(lockCtx); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to acquire drain lock: %w", err)
	}

	release := func() {
		_ = mutex.Unlock(context.Background())
		session.Close()
	}
	return release, nil
}
