package domain

// StepOutput — единый результат выполнения одного шага.
//
// Инвариант: статус и сообщения об ошибке коррелируют —
// FAILED несёт минимум одно сообщение, остальные статусы не несут ни одного.
// Конструкторы NewSuccessOutput/NewFailedOutput поддерживают инвариант.
type StepOutput struct {
	// Data — полезная нагрузка шага (зависит от типа документа).
	Data any `json:"data"`

	// SubData — вспомогательные данные (например, data_output для backend-а).
	SubData map[string]any `json:"sub_data,omitempty"`

	// Status — статус выполнения шага.
	Status StepStatus `json:"step_status"`

	// FailureMessages — сообщения об ошибках (только при FAILED).
	FailureMessages []string `json:"messages"`
}

// NewSuccessOutput создаёт успешный StepOutput.
func NewSuccessOutput(data any, subData map[string]any) *StepOutput {
	if subData == nil {
		subData = make(map[string]any)
	}
	return &StepOutput{
		Data:    data,
		SubData: subData,
		Status:  StatusSuccess,
	}
}

// NewFailedOutput создаёт StepOutput со статусом FAILED.
// Если сообщения не переданы, подставляется "unknown error".
func NewFailedOutput(data any, messages ...string) *StepOutput {
	if len(messages) == 0 {
		messages = []string{"unknown error"}
	}
	return &StepOutput{
		Data:            data,
		SubData:         make(map[string]any),
		Status:          StatusFailed,
		FailureMessages: messages,
	}
}

// NewCancelledOutput создаёт StepOutput со статусом CANCELLED.
func NewCancelledOutput() *StepOutput {
	return &StepOutput{
		SubData: make(map[string]any),
		Status:  StatusCancelled,
	}
}

// IsSuccess возвращает true, если шаг завершился успешно.
func (o *StepOutput) IsSuccess() bool {
	return o != nil && o.Status == StatusSuccess
}

// FailureText возвращает сообщения об ошибке одной строкой.
func (o *StepOutput) FailureText() string {
	if o == nil || len(o.FailureMessages) == 0 {
		return "unknown error"
	}
	text := o.FailureMessages[0]
	for _, msg := range o.FailureMessages[1:] {
		text += "; " + msg
	}
	return text
}

// Field возвращает значение по имени из Data, если Data — map
// или реализует Fielder. Позволяет резолверу контекста заглядывать
// в результаты уже выполненных шагов.
func (o *StepOutput) Field(name string) (any, bool) {
	if o == nil || o.Data == nil {
		return nil, false
	}
	switch data := o.Data.(type) {
	case map[string]any:
		v, ok := data[name]
		return v, ok
	case Fielder:
		return data.Field(name)
	default:
		return nil, false
	}
}

// Fielder — доступ к именованным полям доменного объекта.
//
// Реализуется типами, в которые резолвер контекста должен уметь
// заглядывать по имени ключа (разобранные документы, WorkflowStep).
type Fielder interface {
	Field(name string) (any, bool)
}
