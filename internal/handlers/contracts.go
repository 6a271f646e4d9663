package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/plainclause/contract-analyzer-api/internal/models"
	"github.com/plainclause/contract-analyzer-api/internal/services"
	"github.com/plainclause/contract-analyzer-api/internal/utils"
)

type ContractHandler struct {
	service     services.ContractService
	logger      *utils.Logger
	maxFileSize int64
}

func NewContractHandler(service services.ContractService, logger *utils.Logger, maxFileSize int64) *ContractHandler {
	return &ContractHandler{
		service:     service,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// AnalyzeContract handles POST /analyze-contract/: validates the multipart
// upload, then runs the extract-analyze pipeline and writes the result.
func (h *ContractHandler) AnalyzeContract(w http.ResponseWriter, r *http.Request) {
	// Check Content-Length header first to reject oversized requests early
	if r.ContentLength > h.maxFileSize {
		h.respondError(w, utils.NewBadRequestError(h.sizeLimitMessage()))
		return
	}

	// Limit the request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			h.respondError(w, utils.NewBadRequestError(h.sizeLimitMessage()))
			return
		}
		h.respondError(w, utils.NewBadRequestError("Invalid form data"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, utils.NewBadRequestError("No file provided"))
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		h.respondError(w, utils.NewBadRequestError("Invalid file type. Only PDF files are accepted."))
		return
	}

	if declaredMediaType(header.Header.Get("Content-Type")) != "application/pdf" {
		h.respondError(w, utils.NewBadRequestError("Invalid file content type. Expected application/pdf."))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.respondError(w, utils.NewInternalError("Failed to read file"))
		return
	}

	if len(data) == 0 {
		h.respondError(w, utils.NewBadRequestError("Uploaded file is empty"))
		return
	}

	h.logger.Info("Contract upload received",
		"filename", header.Filename,
		"size", len(data),
		"content_type", header.Header.Get("Content-Type"))

	req := &models.UploadRequest{
		File:        data,
		Filename:    header.Filename,
		ContentType: "application/pdf",
	}

	result, err := h.service.AnalyzeContract(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *ContractHandler) sizeLimitMessage() string {
	return fmt.Sprintf("File size exceeds the %dMB limit", h.maxFileSize>>20)
}

// declaredMediaType strips any parameters from a Content-Type header value.
func declaredMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

func (h *ContractHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *ContractHandler) respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch e := err.(type) {
	case *utils.AppError:
		status = e.StatusCode
		message = e.Message
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
	}

	h.logger.Error("Request error", "status", status, "error", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
