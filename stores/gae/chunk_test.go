//go:build !wasm
// +build !wasm

package gae

import (
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/stretchr/testify/assert"
)

func TestChunkKeys(t *testing.T) {
	keysN := func(n int) []*datastore.Key {
		if n == 0 {
			return nil
		}
		out := make([]*datastore.Key, n)
		for i := range out {
			out[i] = datastore.IDKey(KindSession, int64(i+1), nil)
		}
		return out
	}

	tests := []struct {
		name  string
		n     int
		sizes []int
	}{
		{"empty", 0, nil},
		{"under limit", 3, []int{3}},
		{"exactly one batch", maxBatchMutations, []int{maxBatchMutations}},
		{"spills over", 1201, []int{maxBatchMutations, maxBatchMutations, 201}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := keysN(tt.n)
			batches := chunkKeys(keys, maxBatchMutations)

			var sizes []int
			var flat []*datastore.Key
			for _, b := range batches {
				assert.LessOrEqual(t, len(b), maxBatchMutations)
				sizes = append(sizes, len(b))
				flat = append(flat, b...)
			}
			assert.Equal(t, tt.sizes, sizes)
			assert.Equal(t, keys, flat)
		})
	}
}
