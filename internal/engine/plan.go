package engine

import (
	"context"
	"fmt"

	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/steps"
)

// executePlan выполняет call-план шага и возвращает последний ответ
// и трейс всех выполненных вызовов.
//
// Трейс возвращается и при ошибке: выполненная часть плана остаётся
// в аудите запуска. nil-план валиден (чисто локальные шаги) —
// возвращается пустой результат без ошибки.
func (d *Dispatcher) executePlan(ctx context.Context, plan *steps.Plan, tracking *domain.Tracking, file domain.FileRecord, step *domain.WorkflowStep, cdata *domain.ContextData) (any, []domain.APICall, error) {
	if plan == nil || len(plan.Calls) == 0 {
		return nil, nil, nil
	}

	keys := plan.RequiredKeys()
	trace := make([]domain.APICall, 0, len(plan.Calls))

	var lastResponse any
	for i, call := range plan.Calls {
		// Extract-правила предыдущих записей уже заполнили часть
		// ключей; резолвер дозаполняет только пустые.
		FillRequiredKeys(keys, file, step, cdata)

		if err := checkRequired(keys, call.RequiredContext); err != nil {
			return lastResponse, trace, fmt.Errorf("plan %s call %d: %w", plan.Name, i, err)
		}

		var (
			resp   any
			record domain.APICall
			err    error
		)
		if call.IsLocal() {
			resp, record, err = d.executeLocalCall(ctx, call, tracking, file, step, cdata, keys, lastResponse)
		} else {
			resp, record, err = d.executeHTTPCall(ctx, call, keys)
		}
		if err != nil {
			return lastResponse, trace, fmt.Errorf("plan %s call %d: %w", plan.Name, i, err)
		}

		trace = append(trace, record)
		lastResponse = resp

		if call.Extract != nil {
			if err := call.Extract(resp, keys); err != nil {
				return lastResponse, trace, fmt.Errorf("plan %s call %d: %w", plan.Name, i, err)
			}
		}
	}

	return lastResponse, trace, nil
}

// executeHTTPCall выполняет HTTP-запись плана.
func (d *Dispatcher) executeHTTPCall(ctx context.Context, call steps.CallSpec, keys steps.Keys) (any, domain.APICall, error) {
	path := call.Path(keys)

	var params map[string]any
	if call.Params != nil {
		params = call.Params(keys)
	}
	var body map[string]any
	if call.Body != nil {
		body = call.Body(keys)
	}

	record := domain.APICall{
		URL:    path,
		Method: call.Method,
		Request: domain.APIRequest{
			Params: params,
			Body:   body,
		},
	}

	var bodyArg any
	if body != nil {
		bodyArg = body
	}
	resp, err := d.backend.Call(ctx, call.Method, path, params, bodyArg)
	if err != nil {
		return nil, record, err
	}

	record.Response = resp
	return resp, record, nil
}

// executeLocalCall выполняет локальную (не-HTTP) запись плана:
// вызывает бизнес-функцию с именем call.Method. В трейсе такая запись
// имеет пустой URL и имя функции в Method; ответом считается Data
// результата функции.
func (d *Dispatcher) executeLocalCall(ctx context.Context, call steps.CallSpec, tracking *domain.Tracking, file domain.FileRecord, step *domain.WorkflowStep, cdata *domain.ContextData, keys steps.Keys, prevResponse any) (any, domain.APICall, error) {
	record := domain.APICall{Method: call.Method}

	fn, ok := d.functions.Resolve(call.Method)
	if !ok {
		return nil, record, fmt.Errorf("%w: %s", ErrFunctionNotFound, call.Method)
	}

	kwargs := make(map[string]any, len(keys))
	for name, val := range keys {
		kwargs[name] = val
	}

	out, err := fn(ctx, &Invocation{
		Tracking: tracking,
		File:     file,
		Step:     step,
		Context:  cdata,
		Response: prevResponse,
		Kwargs:   kwargs,
	})
	if err != nil {
		return nil, record, err
	}
	if out == nil {
		return nil, record, fmt.Errorf("%w: %s returned no output", ErrNoOutput, call.Method)
	}
	if !out.IsSuccess() {
		return nil, record, fmt.Errorf("local call %s: %s", call.Method, out.FailureText())
	}

	record.Response = out.Data
	return out.Data, record, nil
}
