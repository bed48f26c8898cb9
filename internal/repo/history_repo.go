package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Docuflow/internal/domain"
)

// HistoryRepo — репозиторий истории запусков.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Create сохраняет запись истории запуска.
func (r *HistoryRepo) Create(ctx context.Context, h *domain.RunHistory) error {
	detailsJSON, err := json.Marshal(h.StepDetails)
	if err != nil {
		return fmt.Errorf("marshal step details: %w", err)
	}

	query := `
		INSERT INTO run_history (id, request_id, workflow_id, file_name, document_type,
		                         status, error, rerun_attempt, step_details, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		h.ID,
		h.RequestID,
		h.WorkflowID,
		h.FileName,
		string(h.DocumentType),
		string(h.Status),
		nullString(h.Error),
		h.RerunAttempt,
		detailsJSON,
		h.StartedAt,
		h.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run history: %w", err)
	}
	return nil
}

// GetByRequestID возвращает записи истории запуска
// (несколько при rerun-ах), свежие первыми.
func (r *HistoryRepo) GetByRequestID(ctx context.Context, requestID string) ([]domain.RunHistory, error) {
	query := `
		SELECT id, request_id, workflow_id, file_name, document_type,
		       status, error, rerun_attempt, step_details, started_at, finished_at
		FROM run_history
		WHERE request_id = $1
		ORDER BY rerun_attempt DESC, finished_at DESC
	`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var records []domain.RunHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *h)
	}
	return records, rows.Err()
}

// ListByFileName возвращает записи истории по имени файла
// (диагностика: все запуски одного файла), свежие первыми.
func (r *HistoryRepo) ListByFileName(ctx context.Context, fileName string, limit int) ([]domain.RunHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, request_id, workflow_id, file_name, document_type,
		       status, error, rerun_attempt, step_details, started_at, finished_at
		FROM run_history
		WHERE file_name = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, fileName, limit)
	if err != nil {
		return nil, fmt.Errorf("query run history by file: %w", err)
	}
	defer rows.Close()

	var records []domain.RunHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *h)
	}
	return records, rows.Err()
}

// Latest возвращает последнюю запись истории запуска.
func (r *HistoryRepo) Latest(ctx context.Context, requestID string) (*domain.RunHistory, error) {
	query := `
		SELECT id, request_id, workflow_id, file_name, document_type,
		       status, error, rerun_attempt, step_details, started_at, finished_at
		FROM run_history
		WHERE request_id = $1
		ORDER BY rerun_attempt DESC, finished_at DESC
		LIMIT 1
	`
	h, err := scanHistory(r.pool.QueryRow(ctx, query, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, requestID)
	}
	return h, err
}

// rowScanner — общий интерфейс pgx.Row и pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (*domain.RunHistory, error) {
	var (
		h           domain.RunHistory
		docType     string
		status      string
		errText     *string
		detailsJSON []byte
	)
	err := row.Scan(
		&h.ID,
		&h.RequestID,
		&h.WorkflowID,
		&h.FileName,
		&docType,
		&status,
		&errText,
		&h.RerunAttempt,
		&detailsJSON,
		&h.StartedAt,
		&h.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	h.DocumentType = domain.DocumentType(docType)
	h.Status = domain.ParseStatus(status)
	if errText != nil {
		h.Error = *errText
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &h.StepDetails); err != nil {
			return nil, fmt.Errorf("unmarshal step details: %w", err)
		}
	}
	return &h, nil
}

// nullString превращает пустую строку в NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
