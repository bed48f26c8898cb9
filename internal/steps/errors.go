package steps

import "errors"

// Ошибки реестра шагов.
var (
	// ErrStepNotFound — для канонического имени нет определения шага.
	ErrStepNotFound = errors.New("step definition not found")

	// ErrInvalidDefinition — определение шага нарушает инварианты реестра.
	ErrInvalidDefinition = errors.New("invalid step definition")

	// ErrMissingKey — required-ключ не удалось разрешить при построении вызова.
	ErrMissingKey = errors.New("required key is not resolved")

	// ErrExtract — extract-правило не нашло ожидаемое значение в ответе.
	ErrExtract = errors.New("extract rule failed")
)
