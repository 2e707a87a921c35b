//go:build !wasm
// +build !wasm

package gorm_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	oa "github.com/panyam/secureauth"
	gormstore "github.com/panyam/secureauth/stores/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "secureauth.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, gormstore.AutoMigrate(db))
	return db
}

func TestCredentialStore(t *testing.T) {
	ctx := context.Background()
	s := gormstore.NewCredentialStore(openTestDB(t))

	_, err := s.FindByIdentity(ctx, "bob@example.com")
	assert.ErrorIs(t, err, oa.ErrNotFound)

	created, err := s.Create(ctx, " Bob@Example.com", oa.FederatedCredential)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", created.Email)

	found, err := s.FindByIdentity(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.True(t, found.IsFederated())

	_, err = s.Create(ctx, "BOB@example.com", "$2a$10$digest")
	assert.ErrorIs(t, err, oa.ErrConflict)
}

func TestCredentialStore_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := gormstore.NewCredentialStore(openTestDB(t))

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Create(ctx, "race@example.com", fmt.Sprintf("digest-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, oa.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := gormstore.NewSessionStore(openTestDB(t))

	_, found, err := s.FindCtx(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.CommitCtx(ctx, "tok", []byte("v1"), time.Now().Add(time.Hour)))
	require.NoError(t, s.CommitCtx(ctx, "tok", []byte("v2"), time.Now().Add(time.Hour)))
	b, found, err := s.FindCtx(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v2"), b)

	require.NoError(t, s.DeleteCtx(ctx, "tok"))
	_, found, err = s.FindCtx(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Commit("stale", []byte("x"), time.Now().Add(-time.Hour)))
	_, found, err = s.Find("stale")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSessionManagerOverGorm(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := gormstore.NewCredentialStore(db)
	sessions := oa.NewSessionManager(gormstore.NewSessionStore(db), time.Hour, "test-secret")

	user, err := users.Create(ctx, "carol@example.com", "$2a$10$digest")
	require.NoError(t, err)

	token, _, err := sessions.Establish(ctx, user, oa.MethodLocal)
	require.NoError(t, err)

	p, err := sessions.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)

	// the raw token never reaches the table
	var count int64
	require.NoError(t, db.Model(&gormstore.SessionModel{}).Where("token = ?", token).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, sessions.Invalidate(ctx, token))
	_, err = sessions.Resolve(ctx, token)
	assert.ErrorIs(t, err, oa.ErrUnauthenticated)
}
