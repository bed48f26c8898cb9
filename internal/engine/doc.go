// Package engine — движок выполнения шагов обработки документов.
//
// Диспетчер (Dispatcher.Execute) — единственная граница восстановления:
// любая ошибка внутри шага, включая панику, превращается в StepOutput
// со статусом FAILED и хотя бы одним сообщением. Драйвер запуска
// (internal/worker) может полагаться на то, что Execute не роняет процесс.
//
// Выполнение шага: канонизация имени → определение из реестра →
// call-план backend-запросов (с резолвером required-ключей по слоям
// контекста) → бизнес-функция процессора → запись результата в контекст.
package engine
