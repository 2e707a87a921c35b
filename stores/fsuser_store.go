package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	oa "github.com/panyam/secureauth"
)

// FSCredentialStore stores each user as a JSON file named after its identity.
// Uniqueness comes from the filesystem: a user file is created with an
// exclusive link so concurrent registrations cannot both succeed.
type FSCredentialStore struct {
	StoragePath string
}

func NewFSCredentialStore(storagePath string) (*FSCredentialStore, error) {
	s := &FSCredentialStore{StoragePath: storagePath}
	if err := os.MkdirAll(s.usersDir(), 0700); err != nil {
		return nil, fmt.Errorf("create users dir: %w", err)
	}
	return s, nil
}

func (s *FSCredentialStore) usersDir() string {
	return filepath.Join(s.StoragePath, "users")
}

func (s *FSCredentialStore) getUserPath(identity string) string {
	return filepath.Join(s.usersDir(), fileKey(identity)+".json")
}

func (s *FSCredentialStore) FindByIdentity(ctx context.Context, identity string) (*oa.User, error) {
	identity = oa.NormalizeIdentity(identity)
	data, err := os.ReadFile(s.getUserPath(identity))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oa.ErrNotFound
		}
		return nil, err
	}

	var user oa.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("corrupt user record: %w", err)
	}
	return &user, nil
}

func (s *FSCredentialStore) Create(ctx context.Context, identity string, credential string) (*oa.User, error) {
	user := &oa.User{
		ID:         uuid.NewString(),
		Email:      oa.NormalizeIdentity(identity),
		Credential: credential,
		CreatedAt:  time.Now().UTC(),
	}
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return nil, err
	}

	if err := createExclusiveFile(s.getUserPath(user.Email), data); err != nil {
		if err == errExists {
			return nil, oa.ErrConflict
		}
		return nil, err
	}
	return user, nil
}
