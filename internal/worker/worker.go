package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Docuflow/internal/mq"
)

const defaultPrefetch = 1

// Worker потребляет запросы на обработку файлов из RabbitMQ
// и прогоняет их через Driver.
//
// Каждый запуск обрабатывает один файл целиком; prefetch=1 держит
// по одному запуску на экземпляр воркера, масштабирование —
// горизонтальное.
type Worker struct {
	driver *Driver
	conn   *mq.Connection

	consumer *mq.Consumer
	prefetch int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Driver *Driver
	Conn   *mq.Connection

	// Prefetch — сколько запросов забирать из очереди наперёд (default: 1).
	Prefetch int

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		driver:   cfg.Driver,
		conn:     cfg.Conn,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Start запускает потребление очереди files.process.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueFilesProcess),
		Handler:  w.handleFileProcess,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("consumer stopped", "error", err)
		}
	}()

	w.logger.Info("worker started", "queue", mq.QueueFilesProcess)
	return nil
}

// Stop останавливает Worker и дожидается завершения текущего запуска.
func (w *Worker) Stop() {
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped")
}
