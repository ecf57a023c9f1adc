package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docsearch/internal/config"
	"docsearch/internal/extract"
	"docsearch/internal/ingest"
	"docsearch/internal/logging"
	"docsearch/internal/providers"
	"docsearch/internal/retrieval"
	"docsearch/internal/storage"
	"docsearch/internal/vector"
	"docsearch/internal/workspace"
)

const (
	BackendPGVector = "pgvector"
	BackendWeaviate = "weaviate"
	BackendMemory   = "memory"
)

// App is the engine assembled from configuration. Every binary builds one.
type App struct {
	Config     config.Config
	Log        *slog.Logger
	DB         *storage.DB
	Documents  *storage.DocumentRepo
	Chunks     *storage.ChunkRepo
	Workspaces *storage.WorkspaceRepo
	Index      vector.Index
	Providers  *providers.Manager
	Encoder    *providers.Encoder
	Extractor  *extract.Extractor
	Pipeline   *ingest.Pipeline
	Retriever  *retrieval.Retriever
	Service    *workspace.Service
}

// Build connects to Postgres, applies the schema, prepares the configured
// vector backend and wires the engine components together.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	log = logging.OrDefault(log)
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	a, err := assemble(ctx, cfg, log, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func assemble(ctx context.Context, cfg config.Config, log *slog.Logger, db *storage.DB) (*App, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	index, err := NewIndex(ctx, cfg, db)
	if err != nil {
		_ = pm.Close()
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Log:        log,
		DB:         db,
		Documents:  storage.NewDocumentRepo(db),
		Chunks:     storage.NewChunkRepo(db),
		Workspaces: storage.NewWorkspaceRepo(db),
		Index:      index,
		Providers:  pm,
		Extractor:  NewExtractor(cfg, log),
	}
	a.Encoder = providers.NewEncoder(pm, providers.EncoderConfig{
		RatePerSecond: cfg.EmbedRateLimit,
		Burst:         cfg.EmbedBurst,
		MaxAttempts:   cfg.EmbedMaxAttempts,
		Logger:        log,
	})
	a.Pipeline = ingest.New(ingest.Config{
		Extractor:     a.Extractor,
		ChunkMaxChars: cfg.ChunkMaxChars,
		Encoder:       a.Encoder,
		Documents:     a.Documents,
		Chunks:        a.Chunks,
		Workspaces:    a.Workspaces,
		Index:         index,
		Logger:        log,
	})
	a.Retriever = retrieval.New(retrieval.Config{
		Encoder:      a.Encoder,
		Index:        index,
		Keyword:      a.Chunks,
		Names:        a.Documents,
		Counter:      a.Documents,
		Reranker:     pm,
		KeywordScore: cfg.KeywordScore,
		DefaultTopK:  cfg.DefaultTopK,
		Logger:       log,
	})
	a.Service = workspace.NewService(a.Workspaces, a.Documents, index, log)
	log.Info("engine ready",
		"vector_backend", cfg.VectorBackend,
		"embed_providers", cfg.EmbedProviders,
		"embed_dim", cfg.EmbedDim,
		"rerank", cfg.RerankProvider,
		"ocr", a.Extractor.OCREnabled(),
	)
	return a, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Providers != nil {
		if err := a.Providers.Close(); err != nil {
			a.Log.Warn("close providers", "error", err)
		}
	}
	a.DB.Close()
}

// NewIndex returns the vector backend named in cfg with its schema in place.
func NewIndex(ctx context.Context, cfg config.Config, db *storage.DB) (vector.Index, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.VectorBackend)) {
	case "", BackendPGVector:
		idx := vector.NewPGIndex(db.Pool, cfg.EmbedDim)
		if err := idx.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return idx, nil
	case BackendWeaviate:
		idx, err := vector.NewWeaviateIndex(vector.WeaviateConfig{
			Host:   cfg.WeaviateHost,
			Scheme: cfg.WeaviateScheme,
			APIKey: cfg.WeaviateAPIKey,
			Class:  cfg.WeaviateClass,
			Dim:    cfg.EmbedDim,
		})
		if err != nil {
			return nil, err
		}
		if err := idx.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return idx, nil
	case BackendMemory:
		return vector.NewMemoryIndex(cfg.EmbedDim), nil
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.VectorBackend)
	}
}

// NewExtractor enables the OCR path only when an engine is configured.
func NewExtractor(cfg config.Config, log *slog.Logger) *extract.Extractor {
	ecfg := extract.Config{
		MinCharsPerPage: cfg.OCRMinCharsPerPage,
		Logger:          log,
	}
	switch strings.ToLower(strings.TrimSpace(cfg.OCREngine)) {
	case "tesseract":
		ecfg.OCR = extract.NewTesseractOCR(cfg.OCRLanguages)
		ecfg.Rasterizer = extract.NewPDFToPPM(cfg.OCRDPI)
	case "", "none", "off":
	default:
		log.Warn("unknown OCR engine, scanned documents will be rejected", "ocr_engine", cfg.OCREngine)
	}
	return extract.New(ecfg)
}
