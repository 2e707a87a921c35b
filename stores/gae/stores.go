//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	oa "github.com/panyam/secureauth"
)

// Kind constants for Datastore entities
const (
	KindUser    = "User"
	KindSession = "Session"
)

var errUserExists = errors.New("user entity exists")

func namespacedKey(namespace, kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = namespace
	return key
}

// ============================================================================
// CredentialStore
// ============================================================================

// CredentialStore implements oa.CredentialStore using Google Cloud Datastore
type CredentialStore struct {
	client    *datastore.Client
	namespace string
}

// NewCredentialStore creates a new Datastore-backed CredentialStore
func NewCredentialStore(client *datastore.Client, namespace string) *CredentialStore {
	return &CredentialStore{client: client, namespace: namespace}
}

func (s *CredentialStore) FindByIdentity(ctx context.Context, identity string) (*oa.User, error) {
	key := namespacedKey(s.namespace, KindUser, oa.NormalizeIdentity(identity))
	var entity UserEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, oa.ErrNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

// Create inserts the user inside a transaction so a concurrent insert for the
// same email aborts one of the two.
func (s *CredentialStore) Create(ctx context.Context, identity string, credential string) (*oa.User, error) {
	email := oa.NormalizeIdentity(identity)
	key := namespacedKey(s.namespace, KindUser, email)
	entity := &UserEntity{
		Key:        key,
		UserID:     uuid.NewString(),
		Credential: credential,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing UserEntity
		err := tx.Get(key, &existing)
		if err == nil {
			return errUserExists
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		_, err = tx.Put(key, entity)
		return err
	})
	if err != nil {
		if errors.Is(err, errUserExists) {
			return nil, oa.ErrConflict
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

// ============================================================================
// SessionStore
// ============================================================================

// SessionStore implements scs.Store and scs.CtxStore using Google Cloud Datastore
type SessionStore struct {
	client    *datastore.Client
	namespace string
}

func NewSessionStore(client *datastore.Client, namespace string) *SessionStore {
	return &SessionStore{client: client, namespace: namespace}
}

func (s *SessionStore) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *SessionStore) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *SessionStore) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

func (s *SessionStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	var entity SessionEntity
	if err := s.client.Get(ctx, namespacedKey(s.namespace, KindSession, token), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !time.Now().Before(entity.Expiry) {
		return nil, false, nil
	}
	return entity.Data, true, nil
}

func (s *SessionStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	if token == "" {
		return fmt.Errorf("empty session token")
	}
	key := namespacedKey(s.namespace, KindSession, token)
	_, err := s.client.Put(ctx, key, &SessionEntity{Key: key, Data: b, Expiry: expiry.UTC()})
	return err
}

func (s *SessionStore) DeleteCtx(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.client.Delete(ctx, namespacedKey(s.namespace, KindSession, token))
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil
	}
	return err
}

// DeleteExpired removes sessions past their expiry and returns how many went.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	query := datastore.NewQuery(KindSession).
		FilterField("expiry", "<=", time.Now().UTC()).
		KeysOnly()
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	var keys []*datastore.Key
	it := s.client.Run(ctx, query)
	for {
		key, err := it.Next(nil)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, err
		}
		keys = append(keys, key)
	}
	deleted := 0
	for _, batch := range chunkKeys(keys, maxBatchMutations) {
		if err := s.client.DeleteMulti(ctx, batch); err != nil {
			return deleted, err
		}
		deleted += len(batch)
	}
	return deleted, nil
}

// maxBatchMutations is Datastore's per-call limit for multi operations.
const maxBatchMutations = 500

func chunkKeys(keys []*datastore.Key, size int) [][]*datastore.Key {
	var out [][]*datastore.Key
	for len(keys) > size {
		out = append(out, keys[:size:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}
