// Package mq — обмен сообщениями через RabbitMQ.
//
// Топология: обменник docuflow.files с очередью files.process
// (запросы на обработку файлов, DLQ dlq.files). API публикует
// запросы, worker потребляет.
//
// Connection переподключается автоматически; Consumer переживает
// разрывы соединения, продолжая с того же места.
package mq
