package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIndex struct {
	closed bool
}

func (i *recordingIndex) Put(ctx context.Context, id, storageKey string) error { return nil }
func (i *recordingIndex) Lookup(ctx context.Context, id string) (string, bool, error) {
	return "", false, nil
}
func (i *recordingIndex) Delete(ctx context.Context, id string) error { return nil }

func (i *recordingIndex) Close() error {
	i.closed = true
	return nil
}

// The driver owns the attached index for its lifetime and must release it on
// Close so the underlying pool does not leak.
func TestCloseReleasesIndex(t *testing.T) {
	idx := &recordingIndex{}
	d := &Driver{cfg: &Config{Index: idx}}

	require.NoError(t, d.Close())
	assert.True(t, idx.closed)
}

func TestCloseWithoutIndex(t *testing.T) {
	d := &Driver{cfg: &Config{}}
	assert.NoError(t, d.Close())
}
