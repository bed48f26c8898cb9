// Package api — HTTP API управления обработкой файлов.
//
// Постановка файлов в очередь, статусы и отмена запусков,
// повторные запуски с конкретного шага, история запусков.
package api
