package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/steps"
)

// fakeBackend отвечает заранее заданными значениями по пути запроса.
type fakeBackend struct {
	responses map[string]any
	err       error
	calls     []string
}

func (b *fakeBackend) Call(ctx context.Context, method, path string, params map[string]any, body any) (any, error) {
	b.calls = append(b.calls, method+" "+path)
	if b.err != nil {
		return nil, b.err
	}
	for prefix, resp := range b.responses {
		if strings.HasPrefix(path, prefix) {
			return resp, nil
		}
	}
	return nil, nil
}

// fakeFunctions — резолвер функций из map.
type fakeFunctions map[string]StepFunc

func (f fakeFunctions) Resolve(name string) (StepFunc, bool) {
	fn, ok := f[name]
	return fn, ok
}

func testStep(name string, order int) *domain.WorkflowStep {
	return &domain.WorkflowStep{
		WorkflowStepID: fmt.Sprintf("ws-%d", order),
		StepName:       name,
		StepOrder:      order,
	}
}

func testFile() domain.FileRecord {
	return domain.FileRecord{
		"file_path":        "/inbound/orders_2026.csv",
		"file_name":        "orders_2026.csv",
		"file_name_wo_ext": "orders_2026",
		"document_type":    domain.DocumentTypeOrder,
	}
}

// Resolver Tests

func TestResolveKey_LayerPriority(t *testing.T) {
	file := domain.FileRecord{"file_name": "from-file.csv"}
	step := testStep("FILE_PARSE", 0)
	cdata := domain.NewContextData("req-1")
	cdata.ProcessingSteps["file_parse"] = map[string]any{
		"file_name":      "from-context.csv",
		"workflowStepId": "from-context",
		"context_only":   "ctx-value",
	}

	// Слой file record побеждает контекст
	v, ok := ResolveKey("file_name", file, step, cdata)
	if !ok || v != "from-file.csv" {
		t.Errorf("expected from-file.csv, got %v", v)
	}

	// Поля шага побеждают контекст
	v, ok = ResolveKey("workflowStepId", file, step, cdata)
	if !ok || v != "ws-0" {
		t.Errorf("expected ws-0, got %v", v)
	}

	// Контекст — последний слой
	v, ok = ResolveKey("context_only", file, step, cdata)
	if !ok || v != "ctx-value" {
		t.Errorf("expected ctx-value, got %v", v)
	}

	// Неизвестный ключ
	if _, ok := ResolveKey("missing", file, step, cdata); ok {
		t.Error("expected no value for missing key")
	}
}

func TestResolveKey_StepOutputField(t *testing.T) {
	cdata := domain.NewContextData("req-1")
	cdata.ProcessingSteps["metadata_extract"] = domain.NewSuccessOutput(
		map[string]any{"po_number": "PO-77"}, nil)

	v, ok := ResolveKey("po_number", nil, nil, cdata)
	if !ok || v != "PO-77" {
		t.Errorf("expected PO-77, got %v (ok=%v)", v, ok)
	}
}

func TestFillRequiredKeys_KeepsFilled(t *testing.T) {
	keys := steps.Keys{
		"file_name":      nil,
		"workflowStepId": "already-set",
	}
	FillRequiredKeys(keys, testFile(), testStep("FILE_PARSE", 0), domain.NewContextData("req-1"))

	if keys["file_name"] != "orders_2026.csv" {
		t.Errorf("expected file name fill, got %v", keys["file_name"])
	}
	if keys["workflowStepId"] != "already-set" {
		t.Errorf("filled key must not be overwritten, got %v", keys["workflowStepId"])
	}
}

func TestFillFromResponse_ListLaterRecordWins(t *testing.T) {
	keys := steps.Keys{
		"templateFileParseId": nil,
		"already":             "set",
	}
	resp := []any{
		map[string]any{"templateFileParseId": "first", "already": "resp-1"},
		map[string]any{"templateFileParseId": "second"},
	}

	FillFromResponse(keys, resp)

	if keys["templateFileParseId"] != "second" {
		t.Errorf("later record must win, got %v", keys["templateFileParseId"])
	}
	if keys["already"] != "set" {
		t.Errorf("keys filled at entry must not change, got %v", keys["already"])
	}
}

// Dispatcher Tests

func TestExecute_UnknownStep(t *testing.T) {
	d := NewDispatcher(steps.DefaultRegistry(), &fakeBackend{}, fakeFunctions{})
	cdata := domain.NewContextData("req-1")

	out := d.Execute(context.Background(), &domain.Tracking{RequestID: "req-1"}, testFile(), testStep("NO_SUCH_STEP", 0), cdata)

	if out.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", out.Status.Name())
	}
	if len(out.FailureMessages) == 0 {
		t.Error("failed output must carry at least one message")
	}
}

func TestExecute_Success(t *testing.T) {
	backend := &fakeBackend{responses: map[string]any{
		"/api/template/template-parse": map[string]any{"template": "csv"},
	}}
	funcs := fakeFunctions{
		steps.FuncParseFileToJSON: func(ctx context.Context, inv *Invocation) (*domain.StepOutput, error) {
			if inv.Response == nil {
				t.Error("function must receive the api response")
			}
			return domain.NewSuccessOutput(map[string]any{"rows": 3}, nil), nil
		},
	}
	d := NewDispatcher(steps.DefaultRegistry(), backend, funcs)
	cdata := domain.NewContextData("req-1")

	out := d.Execute(context.Background(), &domain.Tracking{RequestID: "req-1"}, testFile(), testStep("FILE_PARSE", 0), cdata)

	if !out.IsSuccess() {
		t.Fatalf("expected SUCCESS, got %s: %v", out.Status.Name(), out.FailureMessages)
	}

	// Результат записан в контекст под data-output ключом
	stored, ok := cdata.StepOutputAt("file_parse")
	if !ok || stored != out {
		t.Error("output must be stored under file_parse")
	}

	// Трейс call-плана прикреплён к деталям шага
	detail := cdata.Detail(0)
	if len(detail.ConfigAPI) != 1 {
		t.Fatalf("expected 1 api call in trace, got %d", len(detail.ConfigAPI))
	}
	if detail.ConfigAPI[0].URL == "" {
		t.Error("http call trace must carry the url")
	}
}

func TestExecute_FunctionErrorBecomesFailed(t *testing.T) {
	backend := &fakeBackend{responses: map[string]any{
		"/api/template/template-parse": map[string]any{},
	}}
	funcs := fakeFunctions{
		steps.FuncParseFileToJSON: func(ctx context.Context, inv *Invocation) (*domain.StepOutput, error) {
			return nil, errors.New("boom")
		},
	}
	d := NewDispatcher(steps.DefaultRegistry(), backend, funcs)

	out := d.Execute(context.Background(), &domain.Tracking{}, testFile(), testStep("FILE_PARSE", 0), domain.NewContextData("req-1"))

	if out.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", out.Status.Name())
	}
	if !strings.Contains(out.FailureText(), "boom") {
		t.Errorf("failure must mention the cause, got %q", out.FailureText())
	}
}

func TestExecute_PanicRecovered(t *testing.T) {
	backend := &fakeBackend{responses: map[string]any{
		"/api/template/template-parse": map[string]any{},
	}}
	funcs := fakeFunctions{
		steps.FuncParseFileToJSON: func(ctx context.Context, inv *Invocation) (*domain.StepOutput, error) {
			panic("unexpected state")
		},
	}
	d := NewDispatcher(steps.DefaultRegistry(), backend, funcs)

	out := d.Execute(context.Background(), &domain.Tracking{}, testFile(), testStep("FILE_PARSE", 0), domain.NewContextData("req-1"))

	if out.Status != domain.StatusFailed {
		t.Fatalf("panic must become FAILED, got %s", out.Status.Name())
	}
	if len(out.FailureMessages) == 0 {
		t.Error("failed output must carry a message")
	}
}

func TestExecute_RequireDataAPIWithoutResponse(t *testing.T) {
	// Backend отвечает nil — FILE_PARSE требует данные API
	d := NewDispatcher(steps.DefaultRegistry(), &fakeBackend{}, fakeFunctions{
		steps.FuncParseFileToJSON: func(ctx context.Context, inv *Invocation) (*domain.StepOutput, error) {
			t.Error("function must not be called without api data")
			return nil, nil
		},
	})

	out := d.Execute(context.Background(), &domain.Tracking{}, testFile(), testStep("FILE_PARSE", 0), domain.NewContextData("req-1"))

	if out.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", out.Status.Name())
	}
}

func TestExecute_PartialTraceOnPlanFailure(t *testing.T) {
	// Первый вызов плана отработает, extract упадёт на пустом ответе
	backend := &fakeBackend{responses: map[string]any{
		"/api/template/template-parse": []any{},
	}}
	d := NewDispatcher(steps.DefaultRegistry(), backend, fakeFunctions{})
	cdata := domain.NewContextData("req-1")

	out := d.Execute(context.Background(), &domain.Tracking{}, testFile(), testStep("TEMPLATE_FORMAT_VALIDATION", 2), cdata)

	if out.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", out.Status.Name())
	}
	// Выполненная часть плана должна остаться в трейсе
	if len(cdata.Detail(2).ConfigAPI) != 1 {
		t.Errorf("expected partial trace with 1 call, got %d", len(cdata.Detail(2).ConfigAPI))
	}
}

func TestExecute_TwoCallPlanWithExtract(t *testing.T) {
	backend := &fakeBackend{responses: map[string]any{
		"/api/template/template-parse": []any{
			map[string]any{"templateFileParse": map[string]any{"id": "tpl-9"}},
		},
		"/api/template/format-validation": []any{
			map[string]any{"columnName": "qty", "pattern": `^\d+$`},
		},
	}}
	funcs := fakeFunctions{
		steps.FuncTemplateValidation: func(ctx context.Context, inv *Invocation) (*domain.StepOutput, error) {
			return domain.NewSuccessOutput(map[string]any{"ok": true}, nil), nil
		},
	}
	d := NewDispatcher(steps.DefaultRegistry(), backend, funcs)
	cdata := domain.NewContextData("req-1")
	cdata.ProcessingSteps["file_parse"] = domain.NewSuccessOutput(map[string]any{}, nil)

	out := d.Execute(context.Background(), &domain.Tracking{}, testFile(), testStep("TEMPLATE_FORMAT_VALIDATION", 1), cdata)

	if !out.IsSuccess() {
		t.Fatalf("expected SUCCESS, got %s: %v", out.Status.Name(), out.FailureMessages)
	}
	if len(backend.calls) != 2 {
		t.Fatalf("expected 2 backend calls, got %v", backend.calls)
	}
	// Второй вызов должен использовать извлечённый id в пути
	if !strings.Contains(backend.calls[1], "tpl-9") {
		t.Errorf("second call must use extracted id, got %s", backend.calls[1])
	}
}

func TestExecute_LocalPlanCall(t *testing.T) {
	backend := &fakeBackend{responses: map[string]any{
		"/api/workflow/step": map[string]any{
			"connectionDto": map[string]any{"id": "conn-5"},
		},
		"/api/connection/publish-data": map[string]any{"published": true},
	}}
	funcs := fakeFunctions{
		steps.FuncCopyFile: func(ctx context.Context, inv *Invocation) (*domain.StepOutput, error) {
			return domain.NewSuccessOutput(map[string]any{"fileOutputLink": "publish/x.csv"}, nil), nil
		},
		steps.FuncPublishData: func(ctx context.Context, inv *Invocation) (*domain.StepOutput, error) {
			return domain.NewSuccessOutput(inv.Response, nil), nil
		},
	}
	d := NewDispatcher(steps.DefaultRegistry(), backend, funcs)
	cdata := domain.NewContextData("req-1")
	cdata.ProcessingSteps["template_mapping"] = domain.NewSuccessOutput(map[string]any{}, nil)

	out := d.Execute(context.Background(), &domain.Tracking{RequestID: "req-1"}, testFile(), testStep("TEMPLATE_PUBLISH_DATA", 3), cdata)

	if !out.IsSuccess() {
		t.Fatalf("expected SUCCESS, got %s: %v", out.Status.Name(), out.FailureMessages)
	}

	trace := cdata.Detail(3).ConfigAPI
	if len(trace) != 3 {
		t.Fatalf("expected 3 trace records, got %d", len(trace))
	}
	// Локальный вызов в трейсе: пустой URL, имя функции в Method
	if trace[1].URL != "" || trace[1].Method != steps.FuncCopyFile {
		t.Errorf("local call trace is wrong: %+v", trace[1])
	}
}

func TestFillKwargs_ListResponse(t *testing.T) {
	d := NewDispatcher(steps.DefaultRegistry(), &fakeBackend{}, fakeFunctions{})
	def, err := steps.DefaultRegistry().Lookup("TEMPLATE_PUBLISH_DATA")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	// Списочный ответ backend-а тоже заполняет kwargs
	resp := []any{
		map[string]any{"other": "x"},
		map[string]any{"connectionDto": map[string]any{"id": "conn-5"}},
	}
	kwargs := d.fillKwargs(def, resp, testFile(), testStep("TEMPLATE_PUBLISH_DATA", 3), domain.NewContextData("req-1"))

	conn, ok := kwargs["connectionDto"].(map[string]any)
	if !ok || conn["id"] != "conn-5" {
		t.Errorf("kwarg must be filled from the list response, got %v", kwargs["connectionDto"])
	}
}

// Hydrator Tests

type fakeLoader struct {
	outputs map[string]*domain.StepOutput
	err     error
}

func (l *fakeLoader) LoadStepResult(ctx context.Context, tracking *domain.Tracking, step *domain.WorkflowStep, folder string) (*domain.StepOutput, error) {
	if l.err != nil {
		return nil, l.err
	}
	out, ok := l.outputs[step.StepName]
	if !ok {
		return nil, nil
	}
	return out, nil
}

func TestHydrate(t *testing.T) {
	loader := &fakeLoader{outputs: map[string]*domain.StepOutput{
		"FILE_PARSE": domain.NewSuccessOutput(map[string]any{"rows": 2}, nil),
	}}
	h := NewHydrator(steps.DefaultRegistry(), loader)
	cdata := domain.NewContextData("req-1")

	skipped := []domain.WorkflowStep{
		{WorkflowStepID: "ws-0", StepName: "FILE_PARSE", StepOrder: 0},
		// Неизвестный шаг не блокирует rerun
		{WorkflowStepID: "ws-1", StepName: "LEGACY_STEP", StepOrder: 1},
	}
	tracking := &domain.Tracking{RequestID: "req-1", RerunStepID: "ws-2", RerunAttempt: 1}

	if err := h.Hydrate(context.Background(), tracking, cdata, skipped); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := cdata.StepOutputAt("file_parse"); !ok {
		t.Error("hydrated result must be stored under file_parse")
	}
}

func TestHydrate_MissingResultSkipped(t *testing.T) {
	loader := &fakeLoader{outputs: map[string]*domain.StepOutput{
		"VALIDATE_DATA": domain.NewSuccessOutput(map[string]any{"valid": true}, nil),
	}}
	h := NewHydrator(steps.DefaultRegistry(), loader)
	cdata := domain.NewContextData("req-1")

	skipped := []domain.WorkflowStep{
		// Результата FILE_PARSE в хранилище нет
		{WorkflowStepID: "ws-0", StepName: "FILE_PARSE", StepOrder: 0},
		{WorkflowStepID: "ws-1", StepName: "VALIDATE_DATA", StepOrder: 1},
	}
	tracking := &domain.Tracking{RequestID: "req-1", RerunStepID: "ws-2", RerunAttempt: 1}

	// Отсутствующий результат пропускается, rerun не прерывается
	if err := h.Hydrate(context.Background(), tracking, cdata, skipped); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := cdata.StepOutputAt("file_parse"); ok {
		t.Error("missing result must not be hydrated")
	}
	if _, ok := cdata.StepOutputAt("validate_data"); !ok {
		t.Error("remaining steps must still be hydrated")
	}
}

func TestHydrate_LoaderFailureIsFatal(t *testing.T) {
	h := NewHydrator(steps.DefaultRegistry(), &fakeLoader{err: errors.New("storage down")})
	cdata := domain.NewContextData("req-1")

	skipped := []domain.WorkflowStep{
		{WorkflowStepID: "ws-0", StepName: "FILE_PARSE", StepOrder: 0},
	}
	err := h.Hydrate(context.Background(), &domain.Tracking{RequestID: "req-1"}, cdata, skipped)
	if !errors.Is(err, ErrHydration) {
		t.Errorf("expected ErrHydration, got %v", err)
	}
}
