package engine

import (
	"context"
	"fmt"

	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/steps"
	"github.com/shaiso/Docuflow/internal/telemetry"
)

// ResultLoader читает сохранённый результат шага из объектного хранилища.
type ResultLoader interface {
	// LoadStepResult загружает результат шага прошлого запуска.
	// folder — папка хранилища шага (TargetStoreData определения).
	// Отсутствие сохранённого результата — не ошибка: (nil, nil);
	// ошибка возвращается только при сбое чтения хранилища.
	LoadStepResult(ctx context.Context, tracking *domain.Tracking, step *domain.WorkflowStep, folder string) (*domain.StepOutput, error)
}

// Hydrator восстанавливает контекст запуска при rerun.
//
// Шаги до точки перезапуска не выполняются заново: их результаты
// читаются из хранилища и укладываются в ProcessingSteps под
// data-output ключами реестра — так, как будто шаги только что
// отработали.
type Hydrator struct {
	registry *steps.Registry
	loader   ResultLoader
}

// NewHydrator создаёт гидратор контекста.
func NewHydrator(registry *steps.Registry, loader ResultLoader) *Hydrator {
	return &Hydrator{registry: registry, loader: loader}
}

// Hydrate восстанавливает результаты пропускаемых шагов в контекст.
//
// Сопоставление идёт по каноническому имени шага (ключу реестра),
// а не по соседству порядковых номеров: workflow между запусками мог
// измениться, имя шага стабильнее его позиции. Шаги без data-output
// пропускаются — им нечего восстанавливать. Отсутствующий в хранилище
// результат логируется и пропускается: зависящий от него шаг упадёт
// позже с явной ошибкой входа. Фатальна только ошибка чтения хранилища.
func (h *Hydrator) Hydrate(ctx context.Context, tracking *domain.Tracking, cdata *domain.ContextData, skipped []domain.WorkflowStep) error {
	log := telemetry.FromContext(ctx)

	for i := range skipped {
		step := &skipped[i]

		canonical, ok := steps.Canonicalize(step.StepName, h.registry.Names())
		if !ok {
			// Неизвестный шаг в пропускаемой части не блокирует rerun:
			// он не оставил бы результата и при обычном запуске.
			log.Warn("skipping hydration of unknown step", "step_name", step.StepName)
			continue
		}

		def, err := h.registry.Lookup(canonical)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrHydration, step.StepName, err)
		}
		if def.DataOutput == "" {
			continue
		}

		out, err := h.loader.LoadStepResult(ctx, tracking, step, def.TargetStoreData)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrHydration, step.StepName, err)
		}
		if out == nil {
			log.Warn("stored step result not found, skipping hydration",
				"step_name", step.StepName,
				"data_output", def.DataOutput)
			continue
		}

		if !out.IsSuccess() {
			// Восстановленный не-SUCCESS результат всё равно кладётся
			// в контекст: решение о пригодности входа принимает сам
			// перезапускаемый шаг.
			log.Warn("hydrated step result is not successful",
				"step_name", step.StepName,
				"status", out.Status.Name())
		}

		cdata.ProcessingSteps[def.DataOutput] = out
		detail := cdata.Detail(step.StepOrder)
		detail.Step = step

		log.Info("step result hydrated",
			"step_name", step.StepName,
			"data_output", def.DataOutput)
	}

	return nil
}
