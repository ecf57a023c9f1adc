package api

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"docsearch/internal/util"
)

// saveUploadedFile streams the upload into dstDir through a temp file and
// returns the content hash with the final path.
func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (hash, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*"+util.FileExt(fh.Filename))
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), src); err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", err
	}

	finalPath := util.SafeJoin(dstDir, fh.Filename)
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("move upload: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), finalPath, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	body := map[string]any{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if kind := util.ErrorKind(err); kind != "" && kind != util.KindInternal {
		body["kind"] = kind
	}
	writeJSON(w, code, map[string]any{"error": body})
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch util.ErrorKind(err) {
	case util.KindWorkspaceNotFound, util.KindDocumentNotFound:
		return http.StatusNotFound
	case util.KindInvalidWorkspace:
		return http.StatusBadRequest
	case util.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case util.KindEmbedding:
		return http.StatusBadGateway
	case util.KindExtraction, util.KindUnsupportedScan:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeKindErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "status", code, "error", err)
	}
	writeErr(w, code, err)
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch status {
	case http.StatusBadRequest:
		return apiError{Code: "DS-API-4001", Message: "Invalid request. Check inputs and retry."}
	case http.StatusNotFound:
		return apiError{Code: "DS-API-4004", Message: "Requested resource was not found."}
	case http.StatusMethodNotAllowed:
		return apiError{Code: "DS-API-4005", Message: "This endpoint does not support the requested method."}
	case http.StatusConflict:
		return apiError{Code: "DS-API-4009", Message: "Operation conflicts with current state. Retry after checking status."}
	case http.StatusUnprocessableEntity:
		return apiError{Code: "DS-API-4022", Message: "Document content could not be extracted."}
	case http.StatusBadGateway:
		return apiError{Code: "DS-API-5020", Message: "Embedding provider failed. Retry later."}
	case http.StatusServiceUnavailable:
		if strings.Contains(raw, "workflow engine") {
			return apiError{Code: "DS-API-5030", Message: "Workflow engine is not configured."}
		}
		return apiError{Code: "DS-DB-5002", Message: "Storage is unavailable. Check local services and retry."}
	}
	if status >= http.StatusInternalServerError {
		if strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist") {
			return apiError{Code: "DS-DB-5001", Message: "Database schema is not initialized. Run migrations and retry."}
		}
		return apiError{Code: "DS-API-5000", Message: "Internal server error. Please retry or check service logs."}
	}
	return apiError{Code: "DS-API-4000", Message: "Request failed."}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
