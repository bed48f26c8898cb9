package api

import "github.com/shaiso/Docuflow/internal/domain"

// ProcessFileRequest — запрос на постановку файла в обработку.
type ProcessFileRequest struct {
	FilePath string `json:"file_path"`
	Project  string `json:"project"`
	Source   string `json:"source"`
}

// ProcessFileResponse — ответ с идентификатором запуска.
type ProcessFileResponse struct {
	RequestID string `json:"request_id"`
}

// RerunRequest — запрос на повторный запуск с конкретного шага.
// FilePath опционален: по умолчанию берётся файл из истории запуска.
type RerunRequest struct {
	StepID   string `json:"step_id"`
	FilePath string `json:"file_path,omitempty"`
}

// RerunResponse — ответ на запрос rerun.
type RerunResponse struct {
	RequestID    string `json:"request_id"`
	RerunAttempt int    `json:"rerun_attempt"`
}

// RunStatusResponse — статус запуска с разбивкой по шагам.
type RunStatusResponse struct {
	RequestID string            `json:"request_id"`
	Status    string            `json:"status"`
	Steps     map[string]string `json:"steps,omitempty"`
}

// statusName переводит код статуса в имя для ответа API.
func statusName(status domain.StepStatus) string {
	return status.Name()
}
