package vectorstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"docuchat/backend/internal/testutils"
	"docuchat/backend/internal/vectorstore"
)

func TestWeaviateClient_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup(true)
	defer s.Teardown()

	ctx := context.Background()
	client, err := vectorstore.OpenWeaviate(ctx, s.WeaviateHost, "http", "DocumentsTest")
	require.NoError(t, err)
	defer client.Close()

	idA := uuid.NewString()
	idB := uuid.NewString()
	records := []vectorstore.Record{
		{
			ID:        idA,
			Embedding: []float32{1, 0, 0},
			Content:   "alpha chunk",
			Metadata: vectorstore.Metadata{
				Filename:   "alpha.md",
				ChunkIndex: 0,
				LineStart:  1,
				LineEnd:    3,
				UploadedAt: time.Now().UTC().Format(time.RFC3339),
			},
		},
		{
			ID:        idB,
			Embedding: []float32{0, 1, 0},
			Content:   "beta chunk",
			Metadata: vectorstore.Metadata{
				Filename:   "beta.md",
				ChunkIndex: 0,
				LineStart:  1,
				LineEnd:    2,
				UploadedAt: time.Now().UTC().Format(time.RFC3339),
			},
		},
	}

	// Upsert & Count
	require.NoError(t, client.Upsert(ctx, records))
	count, err := client.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Query: the alpha vector should come back first with a distance.
	matches, err := client.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "alpha chunk", matches[0].Content)
	assert.Equal(t, "alpha.md", matches[0].Metadata.Filename)
	assert.True(t, matches[0].HasDistance)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)

	// GetAll with filename filter
	got, err := client.GetAll(ctx, 0, 0, "beta.md")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, idB, got[0].ID)

	// DeleteByFilter removes all beta chunks.
	deleted, err := client.DeleteByFilter(ctx, "filename", "beta.md")
	require.NoError(t, err)
	assert.Equal(t, []string{idB}, deleted)

	// DeleteByIDs removes the rest; unknown IDs are ignored.
	require.NoError(t, client.DeleteByIDs(ctx, []string{idA, uuid.NewString()}))
	count, err = client.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
