package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunHistory — запись истории завершённого запуска.
//
// Пишется воркером в БД после финиша запуска (успешного или нет)
// и используется для диагностики и выборки повторных запусков.
type RunHistory struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// RequestID — идентификатор запуска (совпадает с Tracking.RequestID).
	RequestID string `json:"request_id"`

	// WorkflowID — workflow, который выполнялся.
	WorkflowID string `json:"workflow_id"`

	// FileName — имя обработанного файла.
	FileName string `json:"file_name"`

	// DocumentType — тип документа.
	DocumentType DocumentType `json:"document_type"`

	// Status — финальный статус запуска.
	Status StepStatus `json:"status"`

	// Error — текст ошибки, если запуск завершился с FAILED.
	Error string `json:"error,omitempty"`

	// RerunAttempt — номер повторной попытки (0 — первичный запуск).
	RerunAttempt int `json:"rerun_attempt,omitempty"`

	// StepDetails — детали шагов запуска (трейсы вызовов, data output).
	StepDetails []*StepDetail `json:"step_details,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at"`
}
