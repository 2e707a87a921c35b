//go:build !wasm
// +build !wasm

// Package gae provides Google Cloud Datastore implementations of the credential
// and session stores.  Use it when deploying on App Engine or Cloud Run.
//
// Entity Kinds:
//   - User: key is the normalized email, so uniqueness is the key itself
//   - Session: key is the hashed session token
//
// Usage:
//
//	client, err := datastore.NewClient(ctx, projectID)
//	credentials := gae.NewCredentialStore(client, "myapp")
//	sessions := gae.NewSessionStore(client, "myapp")
//
// The namespace argument isolates data between applications sharing one project.
// Pass "" for the default namespace.
package gae
