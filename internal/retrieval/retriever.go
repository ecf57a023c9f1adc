package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"docsearch/internal/logging"
	"docsearch/internal/models"
	"docsearch/internal/util"
	"docsearch/internal/vector"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopK         = 5
	DefaultKeywordScore = 0.5
)

// Outcomes for an empty result, told apart by the document count.
const (
	OutcomeNoDocuments = "no_documents"
	OutcomeNoMatches   = "no_matches"
)

type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

type KeywordSearcher interface {
	KeywordSearch(ctx context.Context, workspace, query string, limit int) ([]models.Candidate, error)
}

type DocumentNamer interface {
	DocumentNames(ctx context.Context, ids []string) (map[string]string, error)
}

type DocumentCounter interface {
	CountDocuments(ctx context.Context, workspace string) (int, error)
}

// Reranker scores passages against the query; ok false means reranking is
// switched off.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) (scores []float64, ok bool, err error)
}

type Config struct {
	Encoder  Encoder
	Index    vector.Index
	Keyword  KeywordSearcher
	Names    DocumentNamer
	Counter  DocumentCounter
	Reranker Reranker
	// KeywordScore is the floor score given to keyword-only candidates.
	KeywordScore float64
	DefaultTopK  int
	Logger       *slog.Logger
}

type StageStatus struct {
	Count int
	Err   error
}

func (s StageStatus) Failed() bool { return s.Err != nil }

type Result struct {
	Candidates []models.Candidate
	Vector     StageStatus
	Keyword    StageStatus
	Rerank     StageStatus
	Reranked   bool
}

type Retriever struct {
	encoder      Encoder
	index        vector.Index
	keyword      KeywordSearcher
	names        DocumentNamer
	counter      DocumentCounter
	reranker     Reranker
	keywordScore float64
	defaultTopK  int
	log          *slog.Logger
}

func New(cfg Config) *Retriever {
	r := &Retriever{
		encoder:      cfg.Encoder,
		index:        cfg.Index,
		keyword:      cfg.Keyword,
		names:        cfg.Names,
		counter:      cfg.Counter,
		reranker:     cfg.Reranker,
		keywordScore: cfg.KeywordScore,
		defaultTopK:  cfg.DefaultTopK,
		log:          logging.OrDefault(cfg.Logger),
	}
	if r.keywordScore <= 0 {
		r.keywordScore = DefaultKeywordScore
	}
	if r.defaultTopK <= 0 {
		r.defaultTopK = DefaultTopK
	}
	return r
}

// Search runs the vector and keyword stages side by side, merges them with
// vector hits first, optionally reranks, and cuts to topK. A failing stage
// contributes nothing; only both failing is an error.
func (r *Retriever) Search(ctx context.Context, query, workspace string, topK int) (Result, error) {
	res := Result{Candidates: []models.Candidate{}}
	query = strings.TrimSpace(query)
	if query == "" {
		return res, nil
	}
	if workspace == "" {
		workspace = models.MainWorkspaceID
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}
	fetch := 2 * topK

	var (
		vectorHits  []models.Candidate
		keywordHits []models.Candidate
		g           errgroup.Group
	)
	g.Go(func() error {
		vectorHits, res.Vector.Err = r.vectorStage(ctx, query, workspace, fetch)
		res.Vector.Count = len(vectorHits)
		return nil
	})
	g.Go(func() error {
		keywordHits, res.Keyword.Err = r.keywordStage(ctx, query, workspace, fetch)
		res.Keyword.Count = len(keywordHits)
		return nil
	})
	_ = g.Wait()

	if res.Vector.Failed() {
		r.log.Warn("vector stage failed", "workspace", workspace, "error", res.Vector.Err)
	}
	if res.Keyword.Failed() {
		r.log.Warn("keyword stage failed", "workspace", workspace, "error", res.Keyword.Err)
	}
	if res.Vector.Failed() && res.Keyword.Failed() {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("search %s: %w", workspace, err)
		}
		return res, fmt.Errorf("search %s: %w: %w", workspace, util.ErrStoreUnavailable, errors.Join(res.Vector.Err, res.Keyword.Err))
	}

	merged := Merge(vectorHits, keywordHits)
	if len(merged) > 0 && r.reranker != nil {
		merged, res.Reranked, res.Rerank.Err = r.rerank(ctx, query, merged)
		if res.Rerank.Failed() {
			r.log.Warn("rerank failed, keeping merge order", "workspace", workspace, "error", res.Rerank.Err)
		}
		if res.Reranked {
			res.Rerank.Count = len(merged)
		}
	}
	if len(merged) > topK {
		merged = merged[:topK]
	}
	res.Candidates = merged
	r.log.Debug("search done", "workspace", workspace, "vector", res.Vector.Count, "keyword", res.Keyword.Count, "returned", len(merged), "reranked", res.Reranked)
	return res, nil
}

func (r *Retriever) vectorStage(ctx context.Context, query, workspace string, k int) ([]models.Candidate, error) {
	vec, err := r.encoder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	hits, err := r.index.Search(ctx, workspace, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]models.Candidate, 0, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.Candidate{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			ChunkIndex: h.ChunkIndex,
			Content:    h.Content,
			Score:      h.Score,
			ScoreKind:  models.ScoreSimilarity,
			Source:     models.SourceVector,
		})
		ids = append(ids, h.DocumentID)
	}
	if len(out) > 0 && r.names != nil {
		names, err := r.names.DocumentNames(ctx, ids)
		if err != nil {
			r.log.Warn("document names unavailable", "error", err)
		}
		for i := range out {
			out[i].DocumentName = names[out[i].DocumentID]
		}
	}
	return out, nil
}

func (r *Retriever) keywordStage(ctx context.Context, query, workspace string, limit int) ([]models.Candidate, error) {
	hits, err := r.keyword.KeywordSearch(ctx, workspace, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	for i := range hits {
		hits[i].Score = r.keywordScore
		hits[i].ScoreKind = models.ScorePlaceholder
		hits[i].Source = models.SourceKeyword
	}
	return hits, nil
}

func (r *Retriever) rerank(ctx context.Context, query string, in []models.Candidate) ([]models.Candidate, bool, error) {
	passages := make([]string, len(in))
	for i, c := range in {
		passages[i] = c.Content
	}
	scores, ok, err := r.reranker.Rerank(ctx, query, passages)
	if err != nil {
		return in, false, err
	}
	if !ok {
		return in, false, nil
	}
	if len(scores) != len(in) {
		return in, false, fmt.Errorf("reranker returned %d scores for %d passages", len(scores), len(in))
	}
	out := make([]models.Candidate, len(in))
	copy(out, in)
	for i := range out {
		out[i].Score = scores[i]
		out[i].ScoreKind = models.ScoreRerank
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, true, nil
}

// Merge concatenates vector and keyword candidates, dropping repeated chunk
// ids. The first occurrence wins, so a chunk found by both keeps its vector
// score.
func Merge(vectorHits, keywordHits []models.Candidate) []models.Candidate {
	seen := make(map[string]struct{}, len(vectorHits)+len(keywordHits))
	out := make([]models.Candidate, 0, len(vectorHits)+len(keywordHits))
	for _, list := range [][]models.Candidate{vectorHits, keywordHits} {
		for _, c := range list {
			if _, dup := seen[c.ChunkID]; dup {
				continue
			}
			seen[c.ChunkID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Describe explains an empty result. It returns "" when res has candidates.
func (r *Retriever) Describe(ctx context.Context, workspace string, res Result) (string, error) {
	if len(res.Candidates) > 0 {
		return "", nil
	}
	if workspace == "" {
		workspace = models.MainWorkspaceID
	}
	n, err := r.counter.CountDocuments(ctx, workspace)
	if err != nil {
		return "", fmt.Errorf("count documents: %w", err)
	}
	if n == 0 {
		return OutcomeNoDocuments, nil
	}
	return OutcomeNoMatches, nil
}
