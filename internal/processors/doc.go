// Package processors — бизнес-функции шагов обработки документов.
//
// Processor регистрирует функции по строковым идентификаторам
// из internal/steps и отдаёт их движку (engine.FunctionResolver).
// Разбор исходных файлов вынесен в ParserRegistry: парсер выбирается
// по расширению файла.
package processors
