package util

import "errors"

var (
	ErrExtraction                 = errors.New("extraction failed")
	ErrUnsupportedScannedDocument = errors.New("scanned document needs OCR but no OCR engine is configured")
	ErrEmbedding                  = errors.New("embedding failed")
	ErrStoreUnavailable           = errors.New("store unavailable")
	ErrWorkspaceNotFound          = errors.New("workspace not found")
	ErrDocumentNotFound           = errors.New("document not found")
	ErrInvalidWorkspace           = errors.New("invalid workspace")
)

const (
	KindExtraction        = "extraction"
	KindUnsupportedScan   = "unsupported_scanned_document"
	KindEmbedding         = "embedding"
	KindStoreUnavailable  = "store_unavailable"
	KindWorkspaceNotFound = "workspace_not_found"
	KindDocumentNotFound  = "document_not_found"
	KindInvalidWorkspace  = "invalid_workspace"
	KindInternal          = "internal"
)

// ErrorKind maps an error onto a stable kind string. Scanned-document errors
// are reported before the broader extraction kind they also match.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedScannedDocument):
		return KindUnsupportedScan
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrEmbedding):
		return KindEmbedding
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrWorkspaceNotFound):
		return KindWorkspaceNotFound
	case errors.Is(err, ErrDocumentNotFound):
		return KindDocumentNotFound
	case errors.Is(err, ErrInvalidWorkspace):
		return KindInvalidWorkspace
	default:
		return KindInternal
	}
}
