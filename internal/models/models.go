package models

import "time"

const MainWorkspaceID = "main"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	AccessPrivate = "private"
	AccessPublic  = "public"
)

const (
	SourceVector  = "vector"
	SourceKeyword = "keyword"
)

// Score kinds keep the pre-rerank and post-rerank score spaces apart.
const (
	ScoreSimilarity  = "similarity"
	ScorePlaceholder = "placeholder"
	ScoreRerank      = "rerank"
)

type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	AccessLevel string    `json:"access_level"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type WorkspaceStats struct {
	Workspace
	DocumentCount int `json:"document_count"`
	ChunkCount    int `json:"chunk_count"`
}

type Document struct {
	ID            string    `json:"id"`
	FileName      string    `json:"file_name"`
	ProjectName   string    `json:"project_name,omitempty"`
	Workspace     string    `json:"workspace"`
	FileType      string    `json:"file_type"`
	FileSize      int64     `json:"file_size"`
	ContentHash   string    `json:"content_hash,omitempty"`
	Status        string    `json:"status"`
	ChunksCreated int       `json:"chunks_created"`
	ChunksTotal   int       `json:"chunks_total"`
	StatusMessage string    `json:"status_message,omitempty"`
	UploadDate    time.Time `json:"upload_date"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Complete reports whether every chunk of the document was stored. Stuck
// or partial documents are recovered by ingesting the file again.
func (d Document) Complete() bool {
	return d.Status == StatusCompleted && d.ChunksTotal > 0 && d.ChunksCreated == d.ChunksTotal
}

type Chunk struct {
	ChunkID     string    `json:"chunk_id"`
	DocumentID  string    `json:"document_id"`
	Workspace   string    `json:"workspace"`
	ProjectName string    `json:"project_name,omitempty"`
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmbeddingRecord is the vector-index shadow of a Chunk.
type EmbeddingRecord struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Workspace  string    `json:"workspace"`
	ChunkIndex int       `json:"chunk_index"`
	Vector     []float32 `json:"-"`
	Content    string    `json:"content"`
}

type Candidate struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	ScoreKind    string  `json:"score_kind"`
	Source       string  `json:"source"`
}
