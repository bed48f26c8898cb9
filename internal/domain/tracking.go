package domain

// ProcessRequest — запрос на обработку файла (payload очереди и API).
type ProcessRequest struct {
	FilePath       string `json:"file_path"`
	Project        string `json:"project"`
	Source         string `json:"source"`
	RequestID      string `json:"request_id,omitempty"`
	RerunAttempt   int    `json:"rerun_attempt,omitempty"`
	RerunStepID    string `json:"rerun_step_id,omitempty"`
	RerunSessionID string `json:"rerun_session_id,omitempty"`
}

// Tracking — сквозной контекст трассировки одного запуска.
//
// Создаётся при получении запроса и дополняется по ходу выполнения
// (workflow id, тип документа и т.д.). Передаётся во все компоненты
// для логирования и построения ключей хранилищ.
type Tracking struct {
	RequestID      string       `json:"request_id"`
	FilePath       string       `json:"file_path,omitempty"`
	ProjectName    string       `json:"project_name,omitempty"`
	SourceName     string       `json:"source_name,omitempty"`
	WorkflowID     string       `json:"workflow_id,omitempty"`
	WorkflowName   string       `json:"workflow_name,omitempty"`
	DocumentType   DocumentType `json:"document_type,omitempty"`
	SAPMasterData  bool         `json:"sap_masterdata,omitempty"`
	RerunAttempt   int          `json:"rerun_attempt,omitempty"`
	RerunStepID    string       `json:"rerun_step_id,omitempty"`
	RerunSessionID string       `json:"rerun_session_id,omitempty"`
}

// TrackingFromRequest создаёт Tracking из запроса на обработку.
func TrackingFromRequest(req ProcessRequest) *Tracking {
	return &Tracking{
		RequestID:      req.RequestID,
		FilePath:       req.FilePath,
		ProjectName:    req.Project,
		SourceName:     req.Source,
		RerunAttempt:   req.RerunAttempt,
		RerunStepID:    req.RerunStepID,
		RerunSessionID: req.RerunSessionID,
	}
}

// IsRerun возвращает true, если запуск является повторным
// и нацелен на конкретный шаг.
func (t *Tracking) IsRerun() bool {
	return t != nil && t.RerunStepID != ""
}
