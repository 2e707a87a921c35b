//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	oa "github.com/panyam/secureauth"
)

// UserEntity is the Datastore entity for users.  The key name is the
// normalized email.
type UserEntity struct {
	Key        *datastore.Key `datastore:"__key__"`
	UserID     string         `datastore:"user_id"`
	Credential string         `datastore:"credential,noindex"`
	CreatedAt  time.Time      `datastore:"created_at"`
}

func (e *UserEntity) ToUser() *oa.User {
	return &oa.User{
		ID:         e.UserID,
		Email:      e.Key.Name,
		Credential: e.Credential,
		CreatedAt:  e.CreatedAt,
	}
}

// SessionEntity is the Datastore entity for scs session payloads.  The key name
// is the hashed token.
type SessionEntity struct {
	Key    *datastore.Key `datastore:"__key__"`
	Data   []byte         `datastore:"data,noindex"`
	Expiry time.Time      `datastore:"expiry"`
}
