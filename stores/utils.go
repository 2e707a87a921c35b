package stores

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var errExists = errors.New("file exists")

// writeTempFile writes data to a fresh temp file in dir and returns its path.
func writeTempFile(dir string, data []byte) (string, error) {
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmpPath, nil
}

// writeAtomicFile replaces path with data in one step.
func writeAtomicFile(path string, data []byte) error {
	tmpPath, err := writeTempFile(filepath.Dir(path), data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// createExclusiveFile publishes data at path only if nothing is there yet.  The
// file appears fully written or not at all; if another writer got there first
// errExists is returned.
func createExclusiveFile(path string, data []byte) error {
	tmpPath, err := writeTempFile(filepath.Dir(path), data)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	// link(2) fails if the target exists, unlike rename
	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return errExists
		}
		return fmt.Errorf("failed to link temp file: %w", err)
	}
	return nil
}

// fileKey maps an arbitrary key to a filesystem-safe name.
func fileKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
