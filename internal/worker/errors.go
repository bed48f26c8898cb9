package worker

import "errors"

// Ошибки драйвера запусков.
var (
	// ErrNoWorkflow — backend не подобрал workflow для файла.
	ErrNoWorkflow = errors.New("no workflow matched the file")

	// ErrRerunStepNotFound — шаг точки перезапуска отсутствует в workflow.
	ErrRerunStepNotFound = errors.New("rerun step not found in workflow")
)
