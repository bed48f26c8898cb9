package domain

// StepStatus — статус выполнения шага (и всего запуска).
//
// Коды совпадают с кодами backend-а и с тем, что пишется
// в сохранённый JSON результата шага:
//
//	SUCCESS="1", FAILED="2", CANCELLED="3", PROCESSING="4"
type StepStatus string

const (
	// StatusSuccess — шаг успешно завершён.
	StatusSuccess StepStatus = "1"

	// StatusFailed — шаг завершился с ошибкой.
	StatusFailed StepStatus = "2"

	// StatusCancelled — выполнение отменено пользователем.
	StatusCancelled StepStatus = "3"

	// StatusProcessing — шаг выполняется.
	StatusProcessing StepStatus = "4"
)

// Name возвращает человекочитаемое имя статуса.
func (s StepStatus) Name() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusProcessing:
		return "PROCESSING"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal возвращает true, если статус финальный.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ParseStatus парсит строковый код в StepStatus.
// Неизвестный код трактуется как FAILED.
func ParseStatus(code string) StepStatus {
	switch StepStatus(code) {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusProcessing:
		return StepStatus(code)
	default:
		return StatusFailed
	}
}

// DocumentType — тип обрабатываемого документа.
type DocumentType string

const (
	// DocumentTypeMasterData — справочные (master) данные.
	DocumentTypeMasterData DocumentType = "master_data"

	// DocumentTypeOrder — документ заказа (PO).
	DocumentTypeOrder DocumentType = "order"
)

// SourceType — источник файла.
type SourceType string

const (
	// SourceLocal — локальный файл.
	SourceLocal SourceType = "local"

	// SourceS3 — файл в объектном хранилище.
	SourceS3 SourceType = "s3"
)
