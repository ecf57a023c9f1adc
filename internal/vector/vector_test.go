package vector

import (
	"context"
	"strings"
	"testing"

	"docsearch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wmodels "github.com/weaviate/weaviate/entities/models"
)

func rec(chunk, doc, ws string, idx int, vec ...float32) models.EmbeddingRecord {
	return models.EmbeddingRecord{ChunkID: chunk, DocumentID: doc, Workspace: ws, ChunkIndex: idx, Vector: vec, Content: chunk + " text"}
}

func TestMemoryIndexSearchIsScopedToWorkspace(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Upsert(ctx, rec("a1", "docA", "main", 0, 1, 0)))
	require.NoError(t, idx.Upsert(ctx, rec("a2", "docA", "main", 1, 0.8, 0.6)))
	require.NoError(t, idx.Upsert(ctx, rec("b1", "docB", "ws_other", 0, 1, 0)))

	hits, err := idx.Search(ctx, "main", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a1", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "a2", hits[1].ChunkID)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-6)

	hits, err = idx.Search(ctx, "ws_other", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "docB", hits[0].DocumentID)
}

func TestMemoryIndexLimitAndEmpty(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	hits, err := idx.Search(ctx, "main", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	for i, c := range []string{"c1", "c2", "c3"} {
		require.NoError(t, idx.Upsert(ctx, rec(c, "doc", "main", i, 1, float32(i))))
	}
	hits, err = idx.Search(ctx, "main", []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = idx.Search(ctx, "main", []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndexRejectsWrongDimension(t *testing.T) {
	idx := NewMemoryIndex(3)
	err := idx.Upsert(context.Background(), rec("c", "d", "main", 0, 1, 0))
	require.Error(t, err)
	_, err = idx.Search(context.Background(), "main", []float32{1}, 1)
	require.Error(t, err)
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Upsert(ctx, rec("c", "d", "main", 0, 1, 0)))
	require.NoError(t, idx.Upsert(ctx, rec("c", "d", "main", 0, 0, 1)))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Search(ctx, "main", []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestMemoryIndexDeleteAndMove(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Upsert(ctx, rec("a1", "docA", "main", 0, 1, 0)))
	require.NoError(t, idx.Upsert(ctx, rec("a2", "docA", "main", 1, 1, 0)))
	require.NoError(t, idx.Upsert(ctx, rec("b1", "docB", "main", 0, 1, 0)))

	require.NoError(t, idx.SetWorkspace(ctx, "docA", "ws_1"))
	hits, err := idx.Search(ctx, "main", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b1", hits[0].ChunkID)

	hits, err = idx.Search(ctx, "ws_1", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	require.NoError(t, idx.DeleteByDocument(ctx, "docA"))
	assert.Equal(t, 1, idx.Len())
}

func TestMemoryIndexTruncatesContent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	r := rec("c", "d", "main", 0, 1, 0)
	r.Content = strings.Repeat("đ", ContentLimit+50)
	require.NoError(t, idx.Upsert(ctx, r))

	hits, err := idx.Search(ctx, "main", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ContentLimit, len([]rune(hits[0].Content)))
}

func TestToLiteral(t *testing.T) {
	assert.Equal(t, "[]", ToLiteral(nil))
	assert.Equal(t, "[1,-0.5,0.25]", ToLiteral([]float32{1, -0.5, 0.25}))
}

func TestObjectIDIsStable(t *testing.T) {
	assert.Equal(t, objectID("chunk-1"), objectID("chunk-1"))
	assert.NotEqual(t, objectID("chunk-1"), objectID("chunk-2"))
	assert.Len(t, string(objectID("chunk-1")), 36)
}

func TestClassSchemaUsesFieldTokenizationForIDs(t *testing.T) {
	class := classSchema("DocumentChunk")
	tokenization := map[string]string{}
	for _, prop := range class.Properties {
		tokenization[prop.Name] = prop.Tokenization
	}
	for _, name := range []string{"chunkId", "documentId", "workspace"} {
		assert.Equal(t, wmodels.PropertyTokenizationField, tokenization[name], name)
	}
	assert.Empty(t, tokenization["content"])
	assert.Equal(t, "DocumentChunk", class.Class)
}

func TestParseHits(t *testing.T) {
	data := map[string]wmodels.JSONObject{
		"Get": map[string]interface{}{
			"DocumentChunk": []interface{}{
				map[string]interface{}{
					"chunkId":     "c1",
					"documentId":  "d1",
					"chunkIndex":  float64(3),
					"content":     "hello",
					"_additional": map[string]interface{}{"distance": 0.25},
				},
			},
		},
	}
	hits := parseHits(data, "DocumentChunk")
	require.Len(t, hits, 1)
	assert.Equal(t, Hit{ChunkID: "c1", DocumentID: "d1", ChunkIndex: 3, Content: "hello", Score: 0.75}, hits[0])

	assert.Empty(t, parseHits(map[string]wmodels.JSONObject{}, "DocumentChunk"))
}
