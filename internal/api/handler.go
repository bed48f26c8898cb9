package api

import (
	"log/slog"

	"github.com/shaiso/Docuflow/internal/bookkeeping"
	"github.com/shaiso/Docuflow/internal/mq"
	"github.com/shaiso/Docuflow/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	publisher *mq.Publisher
	book      *bookkeeping.Store
	history   *repo.HistoryRepo
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Publisher *mq.Publisher
	Book      *bookkeeping.Store
	History   *repo.HistoryRepo
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		publisher: cfg.Publisher,
		book:      cfg.Book,
		history:   cfg.History,
		logger:    cfg.Logger,
	}
}
