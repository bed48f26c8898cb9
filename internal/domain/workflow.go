package domain

// WorkflowStep — один узел workflow для конкретного запуска обработки файла.
//
// Получается от backend-а при старте запуска и далее не изменяется.
// Порядок выполнения задаётся StepOrder (уникален в рамках запуска,
// по возрастанию).
type WorkflowStep struct {
	// WorkflowStepID — уникальный идентификатор шага.
	WorkflowStepID string `json:"workflowStepId"`

	// StepName — человекочитаемое имя шага.
	// Может содержать динамический префикс, например "[RULE_MP]_SUBMIT".
	StepName string `json:"stepName"`

	// StepOrder — порядковый номер шага в запуске.
	StepOrder int `json:"stepOrder"`

	// StepConfiguration — произвольная конфигурация шага.
	StepConfiguration []map[string]any `json:"stepConfiguration,omitempty"`
}

// Field возвращает значение структурного поля шага по его wire-имени.
// Используется резолвером контекста (приоритет №2 после file record).
func (s *WorkflowStep) Field(name string) (any, bool) {
	switch name {
	case "workflowStepId":
		return s.WorkflowStepID, true
	case "stepName":
		return s.StepName, true
	case "stepOrder":
		return s.StepOrder, true
	case "stepConfiguration":
		return s.StepConfiguration, true
	default:
		return nil, false
	}
}

// Workflow — структура workflow, полученная от backend-а.
type Workflow struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name,omitempty"`
	Status               string         `json:"status,omitempty"`
	IsMasterDataWorkflow bool           `json:"isMasterDataWorkflow,omitempty"`
	SAPMasterData        bool           `json:"sapMasterData,omitempty"`
	CustomerID           string         `json:"customerId,omitempty"`
	FolderName           string         `json:"folderName,omitempty"`
	FlowID               string         `json:"flowId,omitempty"`
	CustomerFolderName   string         `json:"customerFolderName,omitempty"`
	WorkflowSteps        []WorkflowStep `json:"workflowSteps"`
}

// WorkflowSession — сессия обработки на стороне backend-а.
type WorkflowSession struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StartedStep — ответ backend-а на старт шага.
type StartedStep struct {
	WorkflowHistoryID string `json:"workflowHistoryId"`
	Status            string `json:"status"`
}
