package bookkeeping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Docuflow/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStoreWithClient(client, time.Minute)
}

func TestStore_RunStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Неизвестный запуск
	_, err := store.RunStatus(ctx, "req-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetRunStatus(ctx, "req-1", domain.StatusProcessing); err != nil {
		t.Fatalf("set: %v", err)
	}
	status, err := store.RunStatus(ctx, "req-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if status != domain.StatusProcessing {
		t.Errorf("expected PROCESSING, got %s", status.Name())
	}

	// Перезапись финальным статусом
	if err := store.SetRunStatus(ctx, "req-1", domain.StatusSuccess); err != nil {
		t.Fatalf("set: %v", err)
	}
	status, _ = store.RunStatus(ctx, "req-1")
	if status != domain.StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", status.Name())
	}
}

func TestStore_StepStatuses(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SetStepStatus(ctx, "req-1", "ws-1", domain.StatusSuccess); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetStepStatus(ctx, "req-1", "ws-2", domain.StatusFailed); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Чужой запуск не должен попасть в выборку
	if err := store.SetStepStatus(ctx, "req-2", "ws-1", domain.StatusProcessing); err != nil {
		t.Fatalf("set: %v", err)
	}

	status, err := store.StepStatus(ctx, "req-1", "ws-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if status != domain.StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", status.Name())
	}

	statuses, err := store.StepStatuses(ctx, "req-1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 steps, got %d: %v", len(statuses), statuses)
	}
	if statuses["ws-1"] != domain.StatusSuccess || statuses["ws-2"] != domain.StatusFailed {
		t.Errorf("unexpected statuses: %v", statuses)
	}

	_, err = store.StepStatus(ctx, "req-1", "ws-9")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Cancel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	requested, err := store.IsCancelRequested(ctx, "req-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if requested {
		t.Error("cancel must not be requested initially")
	}

	if err := store.RequestCancel(ctx, "req-1"); err != nil {
		t.Fatalf("request: %v", err)
	}
	requested, err = store.IsCancelRequested(ctx, "req-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !requested {
		t.Error("cancel flag must be set")
	}

	// Флаг другого запуска не затронут
	requested, _ = store.IsCancelRequested(ctx, "req-2")
	if requested {
		t.Error("cancel flag must be scoped to the run")
	}
}
