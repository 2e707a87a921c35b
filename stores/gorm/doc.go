//go:build !wasm
// +build !wasm

// Package gorm provides GORM-backed credential and session stores.  It works with
// any database GORM supports; the server wires PostgreSQL in production and the
// tests run against SQLite.
//
// # Database Schema
//
// AutoMigrate creates:
//   - users: one row per account, unique on email
//   - sessions: scs session payloads keyed by hashed token
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	gormstore.AutoMigrate(db)
//	credentials := gormstore.NewCredentialStore(db)
//	sessions := gormstore.NewSessionStore(db)
package gorm
