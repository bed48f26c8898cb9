package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Docuflow/internal/domain"
)

// ProcessFile ставит файл в очередь обработки.
// POST /api/v1/files/process
func (h *Handler) ProcessFile(w http.ResponseWriter, r *http.Request) {
	var req ProcessFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.FilePath == "" {
		BadRequest(w, "file_path is required")
		return
	}

	requestID := uuid.New().String()
	err := h.publisher.PublishFileProcess(r.Context(), domain.ProcessRequest{
		RequestID: requestID,
		FilePath:  req.FilePath,
		Project:   req.Project,
		Source:    req.Source,
	})
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	if err := h.book.SetRunStatus(r.Context(), requestID, domain.StatusProcessing); err != nil {
		h.logger.Warn("run status init failed", "request_id", requestID, "error", err)
	}

	Accepted(w, ProcessFileResponse{RequestID: requestID})
}

// RerunRun ставит в очередь повторный запуск с указанного шага.
// POST /api/v1/runs/{id}/rerun
func (h *Handler) RerunRun(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	var req RerunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.StepID == "" {
		BadRequest(w, "step_id is required")
		return
	}

	last, err := h.history.Latest(r.Context(), requestID)
	if HandleLookupError(w, h.logger, err, "run not found") {
		return
	}

	filePath := req.FilePath
	if filePath == "" {
		filePath = "/" + last.FileName
	}

	attempt := last.RerunAttempt + 1
	err = h.publisher.PublishFileProcess(r.Context(), domain.ProcessRequest{
		RequestID:    requestID,
		FilePath:     filePath,
		RerunAttempt: attempt,
		RerunStepID:  req.StepID,
	})
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, RerunResponse{RequestID: requestID, RerunAttempt: attempt})
}

// RunStatus возвращает статус запуска и его шагов.
// GET /api/v1/runs/{id}/status
func (h *Handler) RunStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	status, err := h.book.RunStatus(r.Context(), requestID)
	if HandleLookupError(w, h.logger, err, "run not found") {
		return
	}

	stepStatuses, err := h.book.StepStatuses(r.Context(), requestID)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	resp := RunStatusResponse{
		RequestID: requestID,
		Status:    statusName(status),
	}
	if len(stepStatuses) > 0 {
		resp.Steps = make(map[string]string, len(stepStatuses))
		for stepID, stepStatus := range stepStatuses {
			resp.Steps[stepID] = statusName(stepStatus)
		}
	}

	Success(w, resp)
}

// CancelRun запрашивает отмену запуска.
// POST /api/v1/runs/{id}/cancel
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	if _, err := h.book.RunStatus(r.Context(), requestID); HandleLookupError(w, h.logger, err, "run not found") {
		return
	}

	if err := h.book.RequestCancel(r.Context(), requestID); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, map[string]string{"request_id": requestID, "cancel": "requested"})
}

// FileHistory возвращает историю запусков одного файла.
// GET /api/v1/files/history?file_name=orders.csv
func (h *Handler) FileHistory(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("file_name")
	if fileName == "" {
		BadRequest(w, "file_name is required")
		return
	}

	records, err := h.history.ListByFileName(r.Context(), fileName, 0)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	if len(records) == 0 {
		NotFound(w, "no runs for file")
		return
	}

	Success(w, records)
}

// RunHistory возвращает историю запуска (включая rerun-ы).
// GET /api/v1/runs/{id}/history
func (h *Handler) RunHistory(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	records, err := h.history.GetByRequestID(r.Context(), requestID)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	if len(records) == 0 {
		NotFound(w, "run not found")
		return
	}

	Success(w, records)
}
