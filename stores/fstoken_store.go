package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FSSessionStore is an scs session store keeping one JSON file per session.
// Tokens arrive already hashed by the session manager; they are hashed again
// here only to get a safe file name.
type FSSessionStore struct {
	StoragePath string
}

type fsSession struct {
	Data   []byte    `json:"data"`
	Expiry time.Time `json:"expiry"`
}

func NewFSSessionStore(storagePath string) (*FSSessionStore, error) {
	s := &FSSessionStore{StoragePath: storagePath}
	if err := os.MkdirAll(s.sessionsDir(), 0700); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return s, nil
}

func (s *FSSessionStore) sessionsDir() string {
	return filepath.Join(s.StoragePath, "sessions")
}

func (s *FSSessionStore) getSessionPath(token string) string {
	return filepath.Join(s.sessionsDir(), fileKey(token)+".json")
}

func (s *FSSessionStore) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *FSSessionStore) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *FSSessionStore) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

func (s *FSSessionStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(s.getSessionPath(token))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var sess fsSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, false, fmt.Errorf("corrupt session record: %w", err)
	}
	if !time.Now().Before(sess.Expiry) {
		// expired sessions are removed lazily
		_ = s.DeleteCtx(ctx, token)
		return nil, false, nil
	}
	return sess.Data, true, nil
}

func (s *FSSessionStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	if token == "" {
		return fmt.Errorf("empty session token")
	}
	data, err := json.Marshal(fsSession{Data: b, Expiry: expiry})
	if err != nil {
		return err
	}
	return writeAtomicFile(s.getSessionPath(token), data)
}

func (s *FSSessionStore) DeleteCtx(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := os.Remove(s.getSessionPath(token))
	if os.IsNotExist(err) {
		return nil // Already deleted
	}
	return err
}

// Cleanup removes every expired session file and returns how many were removed.
func (s *FSSessionStore) Cleanup() (int, error) {
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.sessionsDir(), entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var sess fsSession
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		if !now.Before(sess.Expiry) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}
