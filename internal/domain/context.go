package domain

// APICall — аудиторская запись одного вызова backend API.
//
// URL хранится без хоста (только path). Для локальных (не-HTTP) вызовов
// URL пустой, а в Method записано имя функции.
type APICall struct {
	URL      string     `json:"url"`
	Method   string     `json:"method"`
	Request  APIRequest `json:"request"`
	Response any        `json:"response"`
}

// APIRequest — параметры и тело запроса в записи APICall.
type APIRequest struct {
	Params map[string]any `json:"params,omitempty"`
	Body   map[string]any `json:"body,omitempty"`
}

// StepDetail — детали выполнения одного шага, индексируются по StepOrder.
type StepDetail struct {
	// Step — сам шаг workflow.
	Step *WorkflowStep `json:"step,omitempty"`

	// ConfigAPI — трейс вызовов call-плана шага.
	ConfigAPI []APICall `json:"config_api,omitempty"`

	// StepStartAPI / StepFinishAPI — служебные вызовы старта/финиша шага.
	StepStartAPI  APICall `json:"step_start_api,omitempty"`
	StepFinishAPI APICall `json:"step_finish_api,omitempty"`

	// DataOutput — данные, переданные backend-у при финише шага.
	DataOutput map[string]any `json:"data_output,omitempty"`
}

// WorkflowDetail — детали запуска на уровне workflow/сессии.
type WorkflowDetail struct {
	FilterAPI        APICall `json:"filter_api,omitempty"`
	SessionStartAPI  APICall `json:"session_start_api,omitempty"`
	SessionFinishAPI APICall `json:"session_finish_api,omitempty"`
}

// ContextData — накопительный контекст одного запуска обработки.
//
// Живёт от старта до конца запуска. ProcessingSteps пополняется
// монотонно по мере успешного выполнения шагов: ключ — объявленный
// data-output шага, значение — его результат (обычно *StepOutput;
// локальные вызовы могут класть map). Перезапись по тому же ключу —
// last-write-wins.
//
// Никакой синхронизации не требуется: контекст принадлежит ровно
// одному запуску, шаги внутри запуска строго последовательны.
type ContextData struct {
	// RequestID — идентификатор запуска.
	RequestID string `json:"request_id"`

	// StepDetail — детали шагов по StepOrder.
	StepDetail []*StepDetail `json:"step_detail,omitempty"`

	// WorkflowDetail — детали уровня workflow.
	WorkflowDetail *WorkflowDetail `json:"workflow_detail,omitempty"`

	// ProcessingSteps — результаты выполненных шагов по data-output ключу.
	ProcessingSteps map[string]any `json:"processing_steps,omitempty"`
}

// NewContextData создаёт пустой контекст запуска.
func NewContextData(requestID string) *ContextData {
	return &ContextData{
		RequestID:       requestID,
		WorkflowDetail:  &WorkflowDetail{},
		ProcessingSteps: make(map[string]any),
	}
}

// Detail возвращает StepDetail для порядкового номера шага,
// расширяя срез при необходимости.
func (c *ContextData) Detail(order int) *StepDetail {
	if order < 0 {
		order = 0
	}
	for len(c.StepDetail) <= order {
		c.StepDetail = append(c.StepDetail, &StepDetail{})
	}
	return c.StepDetail[order]
}

// StepOutputAt возвращает результат шага по data-output ключу,
// если там лежит именно *StepOutput.
func (c *ContextData) StepOutputAt(key string) (*StepOutput, bool) {
	if key == "" {
		return nil, false
	}
	out, ok := c.ProcessingSteps[key].(*StepOutput)
	return out, ok
}
