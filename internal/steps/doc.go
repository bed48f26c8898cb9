// Package steps содержит статические таблицы обработки документов:
// реестр определений шагов и декларативные call-планы backend-запросов.
//
// Таблицы неизменяемы после старта процесса: движок (internal/engine)
// читает их на каждом шаге, но никогда не модифицирует. Канонизация
// имён (Canonicalize) переводит сырые имена шагов workflow в ключи
// реестра, включая динамические имена вида "[RULE_MP]_SUBMIT".
package steps
