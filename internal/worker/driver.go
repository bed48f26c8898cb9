package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Docuflow/internal/backend"
	"github.com/shaiso/Docuflow/internal/bookkeeping"
	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/engine"
	"github.com/shaiso/Docuflow/internal/repo"
	"github.com/shaiso/Docuflow/internal/steps"
	"github.com/shaiso/Docuflow/internal/storage"
	"github.com/shaiso/Docuflow/internal/telemetry"
)

// Driver выполняет один запуск обработки файла от начала до конца:
// подбор workflow → сессия → шаги → финиш, статусы и история.
type Driver struct {
	backend    *backend.Connector
	registry   *steps.Registry
	dispatcher *engine.Dispatcher
	hydrator   *engine.Hydrator
	results    *storage.ResultStore
	book       *bookkeeping.Store
	history    *repo.HistoryRepo
	logger     *slog.Logger
}

// DriverConfig — зависимости драйвера.
type DriverConfig struct {
	Backend    *backend.Connector
	Registry   *steps.Registry
	Dispatcher *engine.Dispatcher
	Hydrator   *engine.Hydrator
	Results    *storage.ResultStore
	Book       *bookkeeping.Store
	History    *repo.HistoryRepo
	Logger     *slog.Logger
}

// NewDriver создаёт драйвер запусков.
func NewDriver(cfg DriverConfig) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		backend:    cfg.Backend,
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		hydrator:   cfg.Hydrator,
		results:    cfg.Results,
		book:       cfg.Book,
		history:    cfg.History,
		logger:     logger,
	}
}

// Run выполняет запуск обработки по запросу.
//
// Возвращает ошибку только до открытия сессии (запрос можно безопасно
// повторить); после — любой исход фиксируется статусом запуска
// и записью истории, а Run возвращает nil.
func (d *Driver) Run(ctx context.Context, req domain.ProcessRequest) error {
	startedAt := time.Now()

	tracking := domain.TrackingFromRequest(req)
	if tracking.RequestID == "" {
		tracking.RequestID = uuid.New().String()
	}

	log := telemetry.WithRequestID(d.logger, tracking.RequestID)
	ctx = telemetry.WithLogger(ctx, log)
	log.Info("run started",
		"file_path", tracking.FilePath,
		"rerun_attempt", tracking.RerunAttempt)

	d.setRunStatus(ctx, tracking.RequestID, domain.StatusProcessing)

	file := buildFileRecord(req.FilePath)
	cdata := domain.NewContextData(tracking.RequestID)

	workflow, err := d.selectWorkflow(ctx, tracking, file, cdata)
	if err != nil {
		// До сессии запуск ещё нигде не зафиксирован на backend-е:
		// сетевые сбои отдаются наверх для retry, отсутствие workflow —
		// финальный отказ.
		if !errors.Is(err, ErrNoWorkflow) {
			return err
		}
		d.finishRun(ctx, tracking, file, cdata, domain.StatusFailed, err.Error(), startedAt)
		return nil
	}

	session, err := d.backend.SessionStart(ctx, tracking, workflow)
	if err != nil {
		return fmt.Errorf("session start: %w", err)
	}
	cdata.WorkflowDetail.SessionStartAPI = domain.APICall{
		URL:      backend.PathSessionStart,
		Method:   "post",
		Response: session,
	}

	status, failure := d.executeSteps(ctx, tracking, file, workflow, cdata)

	if status == domain.StatusSuccess {
		d.persistRunDocument(ctx, tracking, cdata)
	}

	if err := d.backend.SessionFinish(ctx, session, status); err != nil {
		log.Warn("session finish failed", "error", err)
	}
	cdata.WorkflowDetail.SessionFinishAPI = domain.APICall{
		URL:    backend.PathSessionFinish,
		Method: "post",
	}

	d.finishRun(ctx, tracking, file, cdata, status, failure, startedAt)
	return nil
}

// selectWorkflow подбирает workflow по метаданным файла и дополняет
// ими трекинг и file record.
func (d *Driver) selectWorkflow(ctx context.Context, tracking *domain.Tracking, file domain.FileRecord, cdata *domain.ContextData) (domain.Workflow, error) {
	workflows, err := d.backend.FilterWorkflows(ctx, tracking, file)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("workflow filter: %w", err)
	}
	cdata.WorkflowDetail.FilterAPI = domain.APICall{
		URL:      backend.PathWorkflowFilter,
		Method:   "get",
		Response: workflows,
	}
	if len(workflows) == 0 {
		return domain.Workflow{}, fmt.Errorf("%w: %s", ErrNoWorkflow, tracking.FilePath)
	}

	workflow := workflows[0]
	tracking.WorkflowID = workflow.ID
	tracking.WorkflowName = workflow.Name
	tracking.SAPMasterData = workflow.SAPMasterData
	if workflow.IsMasterDataWorkflow {
		tracking.DocumentType = domain.DocumentTypeMasterData
	} else {
		tracking.DocumentType = domain.DocumentTypeOrder
	}

	file["document_type"] = tracking.DocumentType
	if workflow.FolderName != "" {
		file["folder_name"] = workflow.FolderName
	}
	if workflow.CustomerFolderName != "" {
		file["customer_foldername"] = workflow.CustomerFolderName
	}

	return workflow, nil
}

// executeSteps прогоняет шаги workflow по порядку.
// Возвращает финальный статус запуска и текст ошибки (при FAILED).
func (d *Driver) executeSteps(ctx context.Context, tracking *domain.Tracking, file domain.FileRecord, workflow domain.Workflow, cdata *domain.ContextData) (domain.StepStatus, string) {
	log := telemetry.FromContext(ctx)

	ordered := make([]domain.WorkflowStep, len(workflow.WorkflowSteps))
	copy(ordered, workflow.WorkflowSteps)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].StepOrder < ordered[j].StepOrder
	})

	// Rerun: шаги до точки перезапуска не выполняются — их результаты
	// восстанавливаются из хранилища.
	if tracking.IsRerun() {
		idx := -1
		for i := range ordered {
			if ordered[i].WorkflowStepID == tracking.RerunStepID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return domain.StatusFailed, fmt.Sprintf("%v: %s", ErrRerunStepNotFound, tracking.RerunStepID)
		}
		if err := d.hydrator.Hydrate(ctx, tracking, cdata, ordered[:idx]); err != nil {
			return domain.StatusFailed, err.Error()
		}
		ordered = ordered[idx:]
	}

	for i := range ordered {
		step := &ordered[i]
		stepLog := telemetry.WithStepName(log, step.StepName)

		cancelled, err := d.book.IsCancelRequested(ctx, tracking.RequestID)
		if err != nil {
			stepLog.Warn("cancel flag check failed", "error", err)
		}
		if cancelled || ctx.Err() != nil {
			stepLog.Info("run cancelled")
			d.setStepStatus(ctx, tracking.RequestID, step.WorkflowStepID, domain.StatusCancelled)
			return domain.StatusCancelled, ""
		}

		started, err := d.backend.StepStart(ctx, sessionOf(cdata), *step)
		if err != nil {
			return domain.StatusFailed, fmt.Sprintf("step %s start: %v", step.StepName, err)
		}
		detail := cdata.Detail(step.StepOrder)
		detail.StepStartAPI = domain.APICall{
			URL:      backend.PathStepStart,
			Method:   "post",
			Response: started,
		}

		d.setStepStatus(ctx, tracking.RequestID, step.WorkflowStepID, domain.StatusProcessing)

		out := d.dispatcher.Execute(ctx, tracking, file, step, cdata)
		stepsTotal.WithLabelValues(out.Status.Name()).Inc()

		resultKey, err := d.persistResult(ctx, tracking, step, out)
		if err != nil {
			stepLog.Warn("step result persist failed", "error", err)
			if out.IsSuccess() {
				// Без сохранённого результата rerun этого запуска
				// невозможен — фиксируем отказ сразу.
				d.setStepStatus(ctx, tracking.RequestID, step.WorkflowStepID, domain.StatusFailed)
				return domain.StatusFailed, fmt.Sprintf("step %s: persist result: %v", step.StepName, err)
			}
		}

		detail.DataOutput = map[string]any{
			"step_status": string(out.Status),
			"messages":    out.FailureMessages,
		}
		if resultKey != "" {
			detail.DataOutput["json_output"] = resultKey
		}

		d.setStepStatus(ctx, tracking.RequestID, step.WorkflowStepID, out.Status)

		if err := d.backend.StepFinish(ctx, started, out); err != nil {
			stepLog.Warn("step finish failed", "error", err)
		}
		detail.StepFinishAPI = domain.APICall{
			URL:    backend.PathStepFinish,
			Method: "post",
		}

		if !out.IsSuccess() {
			return out.Status, out.FailureText()
		}
	}

	return domain.StatusSuccess, ""
}

// persistResult сохраняет результат шага в объектное хранилище.
func (d *Driver) persistResult(ctx context.Context, tracking *domain.Tracking, step *domain.WorkflowStep, out *domain.StepOutput) (string, error) {
	canonical, ok := steps.Canonicalize(step.StepName, d.registry.Names())
	if !ok {
		return "", nil
	}
	def, err := d.registry.Lookup(canonical)
	if err != nil {
		return "", nil
	}
	return d.results.SaveStepResult(ctx, tracking, step, def.TargetStoreData, out)
}

// persistRunDocument сохраняет итоговый документ запуска с внедрёнными
// деталями шагов. Сбой сохранения не меняет исход запуска.
func (d *Driver) persistRunDocument(ctx context.Context, tracking *domain.Tracking, cdata *domain.ContextData) {
	log := telemetry.FromContext(ctx)

	out, ok := cdata.StepOutputAt("file_parse")
	if !ok {
		return
	}
	doc, ok := out.Data.(*domain.ParsedDocument)
	if !ok {
		// Гидрированный из JSON результат приходит как map; итоговый
		// документ в таком rerun-е уже сохранён базовым запуском.
		return
	}

	var jsonOutput string
	for i := len(cdata.StepDetail) - 1; i >= 0; i-- {
		detail := cdata.StepDetail[i]
		if detail == nil || detail.DataOutput == nil {
			continue
		}
		if key, ok := detail.DataOutput["json_output"].(string); ok && key != "" {
			jsonOutput = key
			break
		}
	}

	final := doc.WithRunDetail(cdata.StepDetail, cdata.WorkflowDetail, jsonOutput)
	key, err := d.results.SaveRunDocument(ctx, tracking, final)
	if err != nil {
		log.Warn("run document persist failed", "error", err)
		return
	}
	log.Info("run document persisted", "key", key)
}

// finishRun фиксирует финал запуска: статус, историю, метрики.
func (d *Driver) finishRun(ctx context.Context, tracking *domain.Tracking, file domain.FileRecord, cdata *domain.ContextData, status domain.StepStatus, failure string, startedAt time.Time) {
	log := telemetry.FromContext(ctx)

	d.setRunStatus(ctx, tracking.RequestID, status)

	record := &domain.RunHistory{
		ID:           uuid.New(),
		RequestID:    tracking.RequestID,
		WorkflowID:   tracking.WorkflowID,
		FileName:     file.String("file_name"),
		DocumentType: tracking.DocumentType,
		Status:       status,
		Error:        failure,
		RerunAttempt: tracking.RerunAttempt,
		StepDetails:  cdata.StepDetail,
		StartedAt:    startedAt,
		FinishedAt:   time.Now(),
	}
	if d.history != nil {
		if err := d.history.Create(ctx, record); err != nil {
			log.Warn("run history insert failed", "error", err)
		}
	}

	runsTotal.WithLabelValues(status.Name()).Inc()
	runDuration.Observe(time.Since(startedAt).Seconds())

	log.Info("run finished",
		"status", status.Name(),
		"error", failure,
		"duration", time.Since(startedAt))
}

// setRunStatus записывает статус запуска; сбой учёта не валит запуск.
func (d *Driver) setRunStatus(ctx context.Context, requestID string, status domain.StepStatus) {
	if err := d.book.SetRunStatus(ctx, requestID, status); err != nil {
		telemetry.FromContext(ctx).Warn("run status update failed", "error", err)
	}
}

// setStepStatus записывает статус шага; сбой учёта не валит запуск.
func (d *Driver) setStepStatus(ctx context.Context, requestID, stepID string, status domain.StepStatus) {
	if err := d.book.SetStepStatus(ctx, requestID, stepID, status); err != nil {
		telemetry.FromContext(ctx).Warn("step status update failed", "error", err)
	}
}

// sessionOf достаёт сессию из записанного в контекст ответа SessionStart.
func sessionOf(cdata *domain.ContextData) *domain.WorkflowSession {
	if session, ok := cdata.WorkflowDetail.SessionStartAPI.Response.(*domain.WorkflowSession); ok {
		return session
	}
	return &domain.WorkflowSession{}
}

// buildFileRecord строит метаданные файла по его пути.
func buildFileRecord(filePath string) domain.FileRecord {
	base := path.Base(filePath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	docType := domain.DocumentTypeOrder
	if strings.Contains(strings.ToLower(base), "master") {
		docType = domain.DocumentTypeMasterData
	}

	return domain.FileRecord{
		"file_path":        filePath,
		"file_path_parent": path.Dir(filePath),
		"file_name":        base,
		"file_name_wo_ext": stem,
		"file_extension":   strings.TrimPrefix(ext, "."),
		"document_type":    docType,
		"proceed_at":       time.Now().UTC().Format(time.RFC3339),
	}
}
