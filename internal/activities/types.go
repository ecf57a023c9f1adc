package activities

type ListFilesInput struct {
	InputDir string `json:"input_dir"`
}

type ListFilesOutput struct {
	Paths []string `json:"paths"`
}

type IngestDocumentInput struct {
	Path         string `json:"path"`
	Workspace    string `json:"workspace"`
	ProjectLabel string `json:"project_label,omitempty"`
}

type IngestDocumentOutput struct {
	Success     bool   `json:"success"`
	Skipped     bool   `json:"skipped,omitempty"`
	DocumentID  string `json:"document_id,omitempty"`
	FileName    string `json:"file_name"`
	SavedChunks int    `json:"saved_chunks"`
	TotalChunks int    `json:"total_chunks"`
	Method      string `json:"method,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

type WriteBatchSummaryInput struct {
	BatchID string         `json:"batch_id"`
	Summary map[string]any `json:"summary"`
}

type WriteBatchSummaryOutput struct {
	Path string `json:"path"`
}
