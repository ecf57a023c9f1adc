package workflows

type BatchIngestInput struct {
	BatchID               string `json:"batch_id"`
	Workspace             string `json:"workspace"`
	InputDir              string `json:"input_dir"`
	ProjectLabel          string `json:"project_label,omitempty"`
	MaxConcurrentChildren int    `json:"max_concurrent_children"`
}

type DocumentIngestInput struct {
	BatchID      string `json:"batch_id"`
	Workspace    string `json:"workspace"`
	Path         string `json:"path"`
	ProjectLabel string `json:"project_label,omitempty"`
}

type DocumentStatus struct {
	Path        string `json:"path"`
	Workspace   string `json:"workspace"`
	DocumentID  string `json:"document_id,omitempty"`
	Status      string `json:"status"`
	SavedChunks int    `json:"saved_chunks"`
	TotalChunks int    `json:"total_chunks"`
	FailReason  string `json:"fail_reason,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

type BatchIngestProgress struct {
	BatchID       string            `json:"batch_id"`
	Workspace     string            `json:"workspace"`
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	Skipped       int               `json:"skipped"`
	PerFile       map[string]string `json:"per_file_status"`
	DocumentIDs   map[string]string `json:"document_ids,omitempty"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}
