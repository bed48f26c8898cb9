// Package storage — объектное хранилище результатов обработки (S3).
//
// Результат каждого шага сохраняется отдельным JSON-объектом
// по детерминированному ключу (см. keys.go); rerun читает результаты
// пропускаемых шагов обратно через ResultStore.
package storage
