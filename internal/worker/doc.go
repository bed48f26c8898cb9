// Package worker — воркер обработки файлов.
//
// Worker потребляет запросы из очереди files.process; Driver проводит
// каждый запрос через полный цикл: подбор workflow, сессия backend-а,
// выполнение шагов движком, сохранение результатов в объектное
// хранилище, статусы в Redis и запись истории в Postgres.
package worker
