package vector

import (
	"context"
	"fmt"
	"strings"

	"docsearch/internal/models"
	"docsearch/internal/storage"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
)

const DefaultWeaviateClass = "DocumentChunk"

// objects fetched per page when moving a document between workspaces
const weaviatePage = 200

type WeaviateConfig struct {
	Host   string
	Scheme string
	APIKey string
	Class  string
	Dim    int
}

// WeaviateIndex keeps one object per chunk in a single class with a
// caller-supplied vector; the workspace is a filterable property.
type WeaviateIndex struct {
	client *weaviate.Client
	class  string
	dim    int
}

func NewWeaviateIndex(cfg WeaviateConfig) (*WeaviateIndex, error) {
	scheme := cfg.Scheme
	host := cfg.Host
	switch {
	case strings.HasPrefix(host, "https://"):
		scheme, host = "https", strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		scheme, host = "http", strings.TrimPrefix(host, "http://")
	}
	if scheme == "" {
		scheme = "http"
	}
	wcfg := weaviate.Config{Host: host, Scheme: scheme}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	class := cfg.Class
	if class == "" {
		class = DefaultWeaviateClass
	}
	return &WeaviateIndex{client: client, class: class, dim: cfg.Dim}, nil
}

func (w *WeaviateIndex) EnsureSchema(ctx context.Context) error {
	exists, err := w.client.Schema().ClassExistenceChecker().WithClassName(w.class).Do(ctx)
	if err != nil {
		return storage.Classify("check weaviate class", err)
	}
	if exists {
		return nil
	}
	class := classSchema(w.class)
	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return storage.Classify("create weaviate class", err)
	}
	return nil
}

// classSchema stores id properties with field tokenization so filters match
// whole values instead of word tokens.
func classSchema(name string) *wmodels.Class {
	return &wmodels.Class{
		Class:           name,
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: []*wmodels.Property{
			{Name: "chunkId", DataType: []string{"text"}, Tokenization: wmodels.PropertyTokenizationField},
			{Name: "documentId", DataType: []string{"text"}, Tokenization: wmodels.PropertyTokenizationField},
			{Name: "workspace", DataType: []string{"text"}, Tokenization: wmodels.PropertyTokenizationField},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "content", DataType: []string{"text"}},
		},
	}
}

// objectID maps a chunk id onto the UUID space weaviate requires, stable
// across re-ingestion so an upsert replaces the previous object.
func objectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

func (w *WeaviateIndex) Upsert(ctx context.Context, rec models.EmbeddingRecord) error {
	if err := checkDim(rec.Vector, w.dim); err != nil {
		return fmt.Errorf("upsert embedding %s: %w", rec.ChunkID, err)
	}
	obj := &wmodels.Object{
		Class: w.class,
		ID:    objectID(rec.ChunkID),
		Properties: map[string]interface{}{
			"chunkId":    rec.ChunkID,
			"documentId": rec.DocumentID,
			"workspace":  rec.Workspace,
			"chunkIndex": rec.ChunkIndex,
			"content":    truncateContent(rec.Content),
		},
		Vector: rec.Vector,
	}
	// batch import overwrites an existing object with the same id
	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(obj).Do(ctx)
	if err != nil {
		return storage.Classify("upsert weaviate object", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("upsert weaviate object %s: %s", rec.ChunkID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func whereEqual(path, value string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{path}).
		WithOperator(filters.Equal).
		WithValueString(value)
}

func (w *WeaviateIndex) Search(ctx context.Context, workspace string, vec []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	if err := checkDim(vec, w.dim); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "documentId"},
		{Name: "chunkIndex"},
		{Name: "content"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	result, err := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(fields...).
		WithNearVector(w.client.GraphQL().NearVectorArgBuilder().WithVector(vec)).
		WithWhere(whereEqual("workspace", workspace)).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, storage.Classify("query weaviate", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("query weaviate: %s", result.Errors[0].Message)
	}
	return parseHits(result.Data, w.class), nil
}

func parseHits(data map[string]wmodels.JSONObject, class string) []Hit {
	out := []Hit{}
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return out
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return out
	}
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		h := Hit{
			ChunkID:    asString(obj["chunkId"]),
			DocumentID: asString(obj["documentId"]),
			Content:    asString(obj["content"]),
		}
		if f, ok := obj["chunkIndex"].(float64); ok {
			h.ChunkIndex = int(f)
		}
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			if d, ok := add["distance"].(float64); ok {
				h.Score = 1 - d
			}
		}
		out = append(out, h)
	}
	return out
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func (w *WeaviateIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := w.client.Batch().ObjectsBatchDeleter().
		WithClassName(w.class).
		WithWhere(whereEqual("documentId", documentID)).
		Do(ctx)
	return storage.Classify("delete weaviate objects", err)
}

func (w *WeaviateIndex) SetWorkspace(ctx context.Context, documentID, workspace string) error {
	ids, err := w.objectIDs(ctx, documentID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		err := w.client.Data().Updater().
			WithMerge().
			WithID(id).
			WithClassName(w.class).
			WithProperties(map[string]interface{}{"workspace": workspace}).
			Do(ctx)
		if err != nil {
			return storage.Classify("move weaviate object", err)
		}
	}
	return nil
}

func (w *WeaviateIndex) objectIDs(ctx context.Context, documentID string) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += weaviatePage {
		result, err := w.client.GraphQL().Get().
			WithClassName(w.class).
			WithFields(graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}).
			WithWhere(whereEqual("documentId", documentID)).
			WithLimit(weaviatePage).
			WithOffset(offset).
			Do(ctx)
		if err != nil {
			return nil, storage.Classify("list weaviate objects", err)
		}
		if len(result.Errors) > 0 {
			return nil, fmt.Errorf("list weaviate objects: %s", result.Errors[0].Message)
		}
		get, _ := result.Data["Get"].(map[string]interface{})
		items, _ := get[w.class].([]interface{})
		for _, item := range items {
			obj, _ := item.(map[string]interface{})
			add, _ := obj["_additional"].(map[string]interface{})
			if id := asString(add["id"]); id != "" {
				ids = append(ids, id)
			}
		}
		if len(items) < weaviatePage {
			return ids, nil
		}
	}
}
