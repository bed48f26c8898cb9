// Docuflow Worker — выполняет запуски обработки файлов.
//
// Worker:
//   - Получает запросы из очереди files.process
//   - Подбирает workflow через backend API
//   - Выполняет шаги движком (реестр + call-планы)
//   - Сохраняет результаты шагов в объектное хранилище
//   - Пишет статусы в Redis и историю в Postgres
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Docuflow/internal/backend"
	"github.com/shaiso/Docuflow/internal/bookkeeping"
	"github.com/shaiso/Docuflow/internal/engine"
	"github.com/shaiso/Docuflow/internal/mq"
	"github.com/shaiso/Docuflow/internal/processors"
	"github.com/shaiso/Docuflow/internal/repo"
	"github.com/shaiso/Docuflow/internal/steps"
	"github.com/shaiso/Docuflow/internal/storage"
	"github.com/shaiso/Docuflow/internal/telemetry"
	"github.com/shaiso/Docuflow/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting docuflow-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	historyRepo := repo.NewHistoryRepo(pool)

	// Redis — статусы запусков и флаги отмены
	book := bookkeeping.NewStore(bookkeeping.ConfigFromEnv())
	defer book.Close()
	if err := book.Ping(ctx); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	logger.Info("redis connected")

	// Объектное хранилище
	s3Client, err := storage.NewClientFromEnv(ctx)
	if err != nil {
		logger.Error("failed to create s3 client", "error", err)
		os.Exit(1)
	}
	store := storage.NewStorage(s3Client)
	results := storage.NewResultStore(store, storage.DataBucket())

	// Backend API
	connector := backend.NewConnector(backend.ConfigFromEnv())

	// Движок: реестр шагов, процессор, диспетчер, гидратор rerun-ов
	registry := steps.DefaultRegistry()
	processor := processors.NewProcessor(processors.NewParserRegistry(), store, storage.DataBucket())
	dispatcher := engine.NewDispatcher(registry, connector, processor)
	hydrator := engine.NewHydrator(registry, results)

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	// Драйвер запусков
	driver := worker.NewDriver(worker.DriverConfig{
		Backend:    connector,
		Registry:   registry,
		Dispatcher: dispatcher,
		Hydrator:   hydrator,
		Results:    results,
		Book:       book,
		History:    historyRepo,
		Logger:     logger,
	})

	// Создаём worker
	w := worker.New(worker.Config{
		Driver: driver,
		Conn:   mqConn,
		Logger: logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	w.Stop()
	logger.Info("docuflow-worker stopped")
}
