package engine

import "errors"

// Ошибки движка выполнения шагов.
var (
	// ErrUnsupportedStep — имя шага не канонизируется в реестр.
	ErrUnsupportedStep = errors.New("step is not supported")

	// ErrNoAPIData — шаг требует ответ backend-а, но call-план его не дал.
	ErrNoAPIData = errors.New("required api data is missing")

	// ErrFunctionNotFound — бизнес-функция шага не зарегистрирована.
	ErrFunctionNotFound = errors.New("step function not found")

	// ErrNoOutput — шаг обязан вернуть данные, но вернул пустой результат.
	ErrNoOutput = errors.New("step produced no output data")

	// ErrHydration — не удалось восстановить результат шага при rerun.
	ErrHydration = errors.New("step result hydration failed")
)
