package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPRerankerMapsScoresByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"index": 1, "score": 0.9},
			{"index": 0, "score": 0.2},
		})
	}))
	defer srv.Close()

	scores, info, err := NewHTTPReranker(srv.URL+"/", "bge").Rerank(context.Background(), RerankRequest{Query: "q", Passages: []string{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, "bge", info.Model)
	require.Equal(t, []float64{0.2, 0.9}, scores)
}

func TestHTTPRerankerRejectsIncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{"index": 0, "score": 0.5}})
	}))
	defer srv.Close()

	_, _, err := NewHTTPReranker(srv.URL, "").Rerank(context.Background(), RerankRequest{Query: "q", Passages: []string{"a", "b"}})
	require.ErrorContains(t, err, "missing passage 1")
}

func TestMockRerankScoresOverlap(t *testing.T) {
	scores, _, err := NewMockProvider(8).Rerank(context.Background(), RerankRequest{
		Query:    "TCVN 4054",
		Passages: []string{"không liên quan", "theo TCVN 4054:2005", "TCVN khác"},
	})
	require.NoError(t, err)
	require.Equal(t, []float64{0, 1, 0.5}, scores)
}
