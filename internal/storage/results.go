package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/shaiso/Docuflow/internal/domain"
)

// DataBucket возвращает имя бакета результатов обработки.
func DataBucket() string {
	if bucket := os.Getenv("S3_DATA_BUCKET"); bucket != "" {
		return bucket
	}
	return "docuflow-data"
}

// ResultStore — сохранение и чтение результатов шагов.
//
// Реализует загрузку результатов для rerun-гидрации: поиск идёт
// по всему префиксу папки шага, без привязки к дате основного запуска
// (она на момент rerun неизвестна).
type ResultStore struct {
	storage *Storage
	bucket  string
}

// NewResultStore создаёт стор результатов.
func NewResultStore(storage *Storage, bucket string) *ResultStore {
	return &ResultStore{storage: storage, bucket: bucket}
}

// SaveStepResult сохраняет результат шага.
// Возвращает ключ записанного объекта.
func (r *ResultStore) SaveStepResult(ctx context.Context, tracking *domain.Tracking, step *domain.WorkflowStep, folder string, out *domain.StepOutput) (string, error) {
	if folder == "" {
		return "", nil
	}
	key := ResultKey(folder, time.Now().UTC(), step.StepOrder, step.StepName, tracking.FilePath, tracking.RerunAttempt)
	if err := r.storage.WriteJSON(ctx, r.bucket, key, out); err != nil {
		return "", err
	}
	return key, nil
}

// SaveRunDocument сохраняет итоговый документ запуска (разобранный файл
// с внедрёнными деталями шагов) отдельно от результатов отдельных шагов.
func (r *ResultStore) SaveRunDocument(ctx context.Context, tracking *domain.Tracking, doc any) (string, error) {
	name := FileStem(tracking.FilePath)
	if tracking.RerunAttempt > 0 {
		name = fmt.Sprintf("%s_rerun_%d", name, tracking.RerunAttempt)
	}
	key := path.Join("process_data", time.Now().UTC().Format("2006-01-02"), "final", name+".json")
	if err := r.storage.WriteJSON(ctx, r.bucket, key, doc); err != nil {
		return "", err
	}
	return key, nil
}

// LoadStepResult читает наиболее свежий сохранённый результат шага
// прошлых запусков (для rerun-гидрации). Отсутствие результата —
// не ошибка: возвращается (nil, nil), гидратор шаг пропустит.
func (r *ResultStore) LoadStepResult(ctx context.Context, tracking *domain.Tracking, step *domain.WorkflowStep, folder string) (*domain.StepOutput, error) {
	keys, err := r.storage.List(ctx, r.bucket, folder+"/")
	if err != nil {
		return nil, err
	}

	stepSegment := "/" + StepFolder(step.StepOrder, step.StepName) + "/"
	var candidates []string
	for _, key := range keys {
		if strings.Contains(key, stepSegment) {
			candidates = append(candidates, key)
		}
	}

	key, ok := SelectLatestResult(candidates, tracking.FilePath, tracking.RerunAttempt)
	if !ok {
		return nil, nil
	}

	var out domain.StepOutput
	if err := r.storage.ReadJSON(ctx, r.bucket, key, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
