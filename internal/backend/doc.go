// Package backend — клиент backend API обработки документов.
//
// Коннектор инкапсулирует авторизацию (X-Token), конверт ответа
// {"data": ...} и типизированные вызовы жизненного цикла запуска
// (filter/session/step). Произвольные вызовы call-планов идут через
// универсальный Call.
package backend
