package backend

// Пути backend API.
//
// База URL (схема/хост/порт) берётся из конфигурации коннектора,
// здесь — только пути относительно неё.
const (
	// PathWorkflowFilter — подбор workflow по метаданным файла.
	PathWorkflowFilter = "/api/workflow/filter"

	// PathSessionStart — открытие сессии обработки.
	PathSessionStart = "/api/workflow/session/start"

	// PathSessionFinish — закрытие сессии обработки.
	PathSessionFinish = "/api/workflow/session/finish"

	// PathStepStart — отметка старта шага (возвращает workflowHistoryId).
	PathStepStart = "/api/workflow/step/start"

	// PathStepFinish — отметка завершения шага.
	PathStepFinish = "/api/workflow/step/finish"

	// PathWorkflowStep — конфигурация шага: GET {path}/{workflowStepId}.
	PathWorkflowStep = "/api/workflow/step"

	// PathTemplateParse — шаблон парсинга файла по workflowStepId.
	PathTemplateParse = "/api/template/template-parse"

	// PathFormatValidation — правила валидации формата:
	// GET {path}/{templateFileParseId}.
	PathFormatValidation = "/api/template/format-validation"

	// PathDataMapping — правила маппинга данных по templateFileParseId.
	PathDataMapping = "/api/template/data-mapping"

	// PathHeaderValidation — справочник валидации заголовков по fileName.
	PathHeaderValidation = "/api/master-data/header-validation"

	// PathColumnValidation — справочник валидации колонок по fileName.
	PathColumnValidation = "/api/master-data/column-validation"

	// PathMasterDataLoad — загрузка мастер-данных в backend.
	PathMasterDataLoad = "/api/master-data/sync-data"

	// PathPublishData — публикация результата во внешнюю систему.
	PathPublishData = "/api/connection/publish-data"
)
