//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	oa "github.com/panyam/secureauth"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Email      string    `gorm:"size:320;not null;uniqueIndex"`
	Credential string    `gorm:"size:128;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *oa.User {
	return &oa.User{
		ID:         m.ID,
		Email:      m.Email,
		Credential: m.Credential,
		CreatedAt:  m.CreatedAt,
	}
}

// SessionModel is the GORM model for scs session payloads
type SessionModel struct {
	Token  string    `gorm:"primaryKey;size:128"`
	Data   []byte    `gorm:"not null"`
	Expiry time.Time `gorm:"not null;index"`
}

func (SessionModel) TableName() string {
	return "sessions"
}
