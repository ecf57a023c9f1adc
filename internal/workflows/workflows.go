package workflows

import (
	"fmt"
	"path"
	"strings"
	"time"

	"docsearch/internal/activities"
	"docsearch/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetDocumentStatus = "GetDocumentStatus"
	QueryGetProgress       = "GetProgress"
)

// Document outcome as seen by the batch.
const (
	StatusSkipped = "skipped"
)

const defaultMaxChildren = 3

// BatchIngestWorkflow ingests every supported file of a directory into one
// workspace, MaxConcurrentChildren documents at a time. A failed document is
// counted and the batch moves on.
func BatchIngestWorkflow(ctx workflow.Context, input BatchIngestInput) (string, error) {
	workspace := input.Workspace
	if workspace == "" {
		workspace = models.MainWorkspaceID
	}
	progress := BatchIngestProgress{
		BatchID:       input.BatchID,
		Workspace:     workspace,
		PerFile:       map[string]string{},
		DocumentIDs:   map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (BatchIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var listOut activities.ListFilesOutput
	if err := workflow.ExecuteActivity(ctx, "ListFilesActivity", activities.ListFilesInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	paths := listOut.Paths
	progress.Total = len(paths)
	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = defaultMaxChildren
	}

	for i := 0; i < len(paths); i += maxChildren {
		end := i + maxChildren
		if end > len(paths) {
			end = len(paths)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		childPaths := make([]string, 0, end-i)
		for j, p := range paths[i:end] {
			progress.PerFile[p] = models.StatusProcessing
			workflowID := childWorkflowID(input.BatchID, i+j, p)
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: workflowID})
			f := workflow.ExecuteChildWorkflow(childCtx, DocumentIngestWorkflow, DocumentIngestInput{
				BatchID:      input.BatchID,
				Workspace:    workspace,
				Path:         p,
				ProjectLabel: input.ProjectLabel,
			})
			futures = append(futures, f)
			childPaths = append(childPaths, p)
			progress.ChildWorkflow[p] = workflowID
		}

		for idx, f := range futures {
			var st DocumentStatus
			err := f.Get(ctx, &st)
			p := childPaths[idx]
			progress.Done++
			if err != nil {
				progress.Failed++
				progress.PerFile[p] = models.StatusFailed
				continue
			}
			switch st.Status {
			case models.StatusFailed:
				progress.Failed++
			case StatusSkipped:
				progress.Skipped++
			}
			progress.PerFile[p] = st.Status
			if st.DocumentID != "" {
				progress.DocumentIDs[p] = st.DocumentID
			}
		}
	}

	_ = workflow.ExecuteActivity(ctx, "WriteBatchSummaryActivity", activities.WriteBatchSummaryInput{
		BatchID: input.BatchID,
		Summary: map[string]any{
			"batch_id":        input.BatchID,
			"workspace":       workspace,
			"input_dir":       input.InputDir,
			"total":           progress.Total,
			"done":            progress.Done,
			"failed":          progress.Failed,
			"skipped":         progress.Skipped,
			"per_file_status": progress.PerFile,
			"document_ids":    progress.DocumentIDs,
			"generated_at":    workflow.Now(ctx),
		},
	}).Get(ctx, nil)

	return models.StatusCompleted, nil
}

// DocumentIngestWorkflow runs the ingestion pipeline for one file. The
// activity gets a single attempt: every run allocates a new document, so a
// retry would leave a duplicate behind.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (DocumentStatus, error) {
	status := DocumentStatus{
		Path:      input.Path,
		Workspace: input.Workspace,
		Status:    models.StatusPending,
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetDocumentStatus, func() (DocumentStatus, error) {
		return status, nil
	}); err != nil {
		return status, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	status.Status = models.StatusProcessing
	var out activities.IngestDocumentOutput
	err := workflow.ExecuteActivity(ctx, "IngestDocumentActivity", activities.IngestDocumentInput{
		Path:         input.Path,
		Workspace:    input.Workspace,
		ProjectLabel: input.ProjectLabel,
	}).Get(ctx, &out)
	if err != nil {
		status.Status = models.StatusFailed
		status.FailReason = err.Error()
		return status, nil
	}

	status.DocumentID = out.DocumentID
	status.SavedChunks = out.SavedChunks
	status.TotalChunks = out.TotalChunks
	switch {
	case out.Skipped:
		status.Status = StatusSkipped
	case out.Success:
		status.Status = models.StatusCompleted
	default:
		status.Status = models.StatusFailed
		status.FailReason = out.Error
		status.ErrorKind = out.ErrorKind
	}
	return status, nil
}

// childWorkflowID carries the file's position in the listing, so two names
// that sanitize alike still get distinct ids.
func childWorkflowID(batchID string, index int, p string) string {
	return fmt.Sprintf("doc-%s-%04d-%s", sanitizeID(batchID), index, sanitizeID(path.Base(p)))
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}
