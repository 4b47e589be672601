package remote

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func init() {
	logger.InitLogger("test")
}

// MockTxn returns a scripted transaction outcome.
type MockTxn struct {
	Succeeded bool
	Err       error
}

func (m *MockTxn) If(cs ...clientv3.Cmp) clientv3.Txn  { return m }
func (m *MockTxn) Then(ops ...clientv3.Op) clientv3.Txn { return m }
func (m *MockTxn) Else(ops ...clientv3.Op) clientv3.Txn { return m }
func (m *MockTxn) Commit() (*clientv3.TxnResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &clientv3.TxnResponse{Succeeded: m.Succeeded}, nil
}

// MockKV partially implements clientv3.KV
type MockKV struct {
	clientv3.KV
	GetFn    func(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	DeleteFn func(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
	TxnResult *MockTxn
}

func (m *MockKV) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, key, opts...)
	}
	return &clientv3.GetResponse{}, nil
}

func (m *MockKV) Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, key, opts...)
	}
	return &clientv3.DeleteResponse{}, nil
}

type mockEtcd struct {
	MockKV
}

func (m *mockEtcd) Txn(ctx context.Context) clientv3.Txn { return m.MockKV.TxnResult }
func (m *mockEtcd) Close() error                         { return nil }

func TestEtcdStore_CreateAssignsServerID(t *testing.T) {
	store := NewEtcdStore(&mockEtcd{MockKV{TxnResult: &MockTxn{Succeeded: true}}})

	id, err := store.Create(context.Background(), "load-monitoring", []byte(`{"feeder":"F-11"}`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create should return a server-assigned id")
	}
	if strings.HasPrefix(id, constraints.LocalIDPrefix) {
		t.Errorf("server id must not carry the local prefix, got %q", id)
	}
}

func TestEtcdStore_UpdateMissingRecordIsPermanent(t *testing.T) {
	store := NewEtcdStore(&mockEtcd{MockKV{TxnResult: &MockTxn{Succeeded: false}}})

	err := store.Update(context.Background(), "vit-asset", "srv-1", []byte(`{}`))
	if err == nil {
		t.Fatal("updating an absent record should fail")
	}
	if !IsPermanent(err) {
		t.Errorf("expected permanent classification, got %v", err)
	}
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestEtcdStore_UnavailableIsUnreachable(t *testing.T) {
	kv := MockKV{
		GetFn: func(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
			return nil, status.Error(codes.Unavailable, "connection refused")
		},
		TxnResult: &MockTxn{Err: status.Error(codes.Unavailable, "connection refused")},
	}
	store := NewEtcdStore(&mockEtcd{kv})

	if err := store.Ping(context.Background()); !IsUnreachable(err) {
		t.Errorf("Ping: expected unreachable classification, got %v", err)
	}
	if _, err := store.Create(context.Background(), "op5-fault", []byte(`{}`)); !IsUnreachable(err) {
		t.Errorf("Create: expected unreachable classification, got %v", err)
	}
}

func TestEtcdStore_PermissionDeniedIsPermanent(t *testing.T) {
	store := NewEtcdStore(&mockEtcd{MockKV{TxnResult: &MockTxn{Err: status.Error(codes.PermissionDenied, "no write access")}}})

	err := store.Update(context.Background(), "vit-asset", "srv-1", []byte(`{}`))
	if !IsPermanent(err) {
		t.Errorf("expected permanent classification, got %v", err)
	}
}

func TestEtcdStore_DeleteAbsentIsNotAnError(t *testing.T) {
	store := NewEtcdStore(&mockEtcd{MockKV{}})

	if err := store.Delete(context.Background(), "op5-fault", "never-existed"); err != nil {
		t.Errorf("deleting an absent record should succeed, got %v", err)
	}
}

func TestEtcdStore_ListStripsKeyPrefix(t *testing.T) {
	kv := MockKV{
		GetFn: func(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
			return &clientv3.GetResponse{
				Kvs: []*mvccpb.KeyValue{
					{Key: []byte(RecordRootPrefix + "vit-asset/srv-1"), Value: []byte(`{"serial":"VIT-001"}`)},
					{Key: []byte(RecordRootPrefix + "vit-asset/srv-2"), Value: []byte(`{"serial":"VIT-002"}`)},
				},
			}, nil
		},
	}
	store := NewEtcdStore(&mockEtcd{kv})

	records, err := store.List(context.Background(), "vit-asset")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "srv-1" || records[1].ID != "srv-2" {
		t.Errorf("ids not stripped from keys: %v", records)
	}
	if records[0].Kind != "vit-asset" {
		t.Errorf("kind = %q", records[0].Kind)
	}
}
