// Package domain содержит доменные модели обработки документов.
//
// Основные типы:
//   - Workflow, WorkflowStep — описание workflow, полученное от backend-а
//   - StepOutput — единый результат выполнения шага (статус + данные)
//   - ContextData — накопительный контекст одного запуска
//   - FileRecord, ParsedDocument — метаданные файла и разобранный документ
//   - Tracking — сквозной контекст трассировки запуска
//   - RunHistory — запись истории завершённого запуска
//
// Статусы шагов кодируются строками "1".."4" (SUCCESS, FAILED,
// CANCELLED, PROCESSING) — так они ходят по сети и лежат в хранилищах.
package domain
