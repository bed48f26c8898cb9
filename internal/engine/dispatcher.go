package engine

import (
	"context"
	"fmt"

	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/steps"
	"github.com/shaiso/Docuflow/internal/telemetry"
)

// Invocation — аргументы одного вызова бизнес-функции.
type Invocation struct {
	// Tracking — сквозной контекст запуска.
	Tracking *domain.Tracking

	// File — метаданные обрабатываемого файла.
	File domain.FileRecord

	// Step — текущий шаг workflow.
	Step *domain.WorkflowStep

	// Context — накопительный контекст запуска.
	Context *domain.ContextData

	// DataInput — вход шага (результат шага с объявленным data-input).
	DataInput any

	// Response — последний ответ backend-а из call-плана.
	Response any

	// Kwargs — required-аргументы функции, дозаполненные из ответа
	// и слоёв контекста.
	Kwargs map[string]any

	// TargetFolder — папка объектного хранилища для результата шага.
	TargetFolder string
}

// StepFunc — бизнес-функция шага.
//
// Возвращает результат шага либо ошибку; диспетчер превращает ошибку
// в StepOutput со статусом FAILED.
type StepFunc func(ctx context.Context, inv *Invocation) (*domain.StepOutput, error)

// FunctionResolver отдаёт бизнес-функцию по её строковому идентификатору.
type FunctionResolver interface {
	Resolve(functionName string) (StepFunc, bool)
}

// Backend — минимальный интерфейс backend-клиента для call-планов.
type Backend interface {
	Call(ctx context.Context, method, path string, params map[string]any, body any) (any, error)
}

// Dispatcher выполняет шаги workflow.
//
// Единственная граница восстановления движка: Execute не возвращает
// ошибок и не пропускает паник — любой сбой становится StepOutput
// со статусом FAILED.
type Dispatcher struct {
	registry  *steps.Registry
	backend   Backend
	functions FunctionResolver
}

// NewDispatcher создаёт диспетчер шагов.
func NewDispatcher(registry *steps.Registry, backend Backend, functions FunctionResolver) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		backend:   backend,
		functions: functions,
	}
}

// Execute выполняет один шаг workflow и возвращает его результат.
//
// Результат успешного шага с объявленным data-output записывается
// в cdata.ProcessingSteps; трейс вызовов call-плана попадает в
// cdata.StepDetail даже при частичном выполнении плана.
func (d *Dispatcher) Execute(ctx context.Context, tracking *domain.Tracking, file domain.FileRecord, step *domain.WorkflowStep, cdata *domain.ContextData) (out *domain.StepOutput) {
	log := telemetry.WithStepName(telemetry.FromContext(ctx), step.StepName)

	defer func() {
		if r := recover(); r != nil {
			log.Error("step panicked", "panic", fmt.Sprintf("%v", r))
			out = domain.NewFailedOutput(nil, fmt.Sprintf("step %s panicked: %v", step.StepName, r))
		}
	}()

	canonical, ok := steps.Canonicalize(step.StepName, d.registry.Names())
	if !ok {
		log.Warn("step name does not match registry")
		return domain.NewFailedOutput(nil, fmt.Sprintf("%v: %s", ErrUnsupportedStep, step.StepName))
	}

	def, err := d.registry.Lookup(canonical)
	if err != nil {
		return domain.NewFailedOutput(nil, err.Error())
	}

	// Call-план: backend-вызовы шага. Трейс прикрепляется к контексту
	// даже при ошибке на середине плана.
	plan := steps.PlanFor(canonical)
	response, trace, planErr := d.executePlan(ctx, plan, tracking, file, step, cdata)

	detail := cdata.Detail(step.StepOrder)
	detail.Step = step
	detail.ConfigAPI = append(detail.ConfigAPI, trace...)

	if planErr != nil {
		log.Warn("call plan failed", "plan", planName(plan), "error", planErr)
		return domain.NewFailedOutput(nil, fmt.Sprintf("step %s: %v", step.StepName, planErr))
	}

	if def.RequireDataAPI && response == nil {
		log.Warn("backend returned no data", "plan", planName(plan))
		return domain.NewFailedOutput(nil, fmt.Sprintf("step %s: %v", step.StepName, ErrNoAPIData))
	}

	fn, ok := d.functions.Resolve(def.FunctionName)
	if !ok {
		return domain.NewFailedOutput(nil, fmt.Sprintf("%v: %s", ErrFunctionNotFound, def.FunctionName))
	}

	var dataInput any
	if def.DataInput != "" {
		dataInput = cdata.ProcessingSteps[def.DataInput]
	}

	inv := &Invocation{
		Tracking:     tracking,
		File:         file,
		Step:         step,
		Context:      cdata,
		DataInput:    dataInput,
		Response:     response,
		Kwargs:       d.fillKwargs(def, response, file, step, cdata),
		TargetFolder: def.TargetStoreData,
	}

	out, err = fn(ctx, inv)
	if err != nil {
		log.Warn("step function failed", "function", def.FunctionName, "error", err)
		return domain.NewFailedOutput(nil, fmt.Sprintf("step %s: %v", step.StepName, err))
	}
	if out == nil {
		return domain.NewFailedOutput(nil, fmt.Sprintf("step %s: function %s returned no output", step.StepName, def.FunctionName))
	}

	if out.IsSuccess() {
		if def.RequireDataOutput && out.Data == nil {
			return domain.NewFailedOutput(nil, fmt.Sprintf("step %s: %v", step.StepName, ErrNoOutput))
		}
		if def.DataOutput != "" {
			cdata.ProcessingSteps[def.DataOutput] = out
		}
	}

	log.Info("step executed",
		"function", def.FunctionName,
		"status", out.Status.Name())
	return out
}

// fillKwargs копирует шаблон kwargs определения и дозаполняет пустые
// значения: сперва из последнего ответа backend-а (одиночная запись
// или список, побеждает последняя запись с ключом), затем из слоёв
// контекста запуска.
func (d *Dispatcher) fillKwargs(def steps.Definition, response any, file domain.FileRecord, step *domain.WorkflowStep, cdata *domain.ContextData) map[string]any {
	kwargs := def.CloneKwargs()
	if len(kwargs) == 0 {
		return kwargs
	}

	FillFromResponse(steps.Keys(kwargs), response)
	for name, val := range kwargs {
		if val != nil {
			continue
		}
		if v, ok := ResolveKey(name, file, step, cdata); ok {
			kwargs[name] = v
		}
	}
	return kwargs
}

// planName возвращает имя плана для логов ("-" при отсутствии плана).
func planName(plan *steps.Plan) string {
	if plan == nil {
		return "-"
	}
	return plan.Name
}
