package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/steps"
)

// ResolveKey ищет значение required-ключа по слоям контекста запуска.
//
// Порядок слоёв фиксирован и определяет приоритет при конфликте имён:
//  1. метаданные файла (FileRecord);
//  2. структурные поля текущего шага (wire-имена WorkflowStep);
//  3. результаты выполненных шагов (ProcessingSteps): map-значения
//     отдают ключи напрямую, *StepOutput и Fielder — через Field.
//
// Слой №3 обходится по отсортированным data-output ключам, чтобы
// разрешение было детерминированным при конфликте имён между шагами.
func ResolveKey(name string, file domain.FileRecord, step *domain.WorkflowStep, cdata *domain.ContextData) (any, bool) {
	if file != nil {
		if v, ok := file[name]; ok && v != nil {
			return v, true
		}
	}

	if step != nil {
		if v, ok := step.Field(name); ok && v != nil {
			return v, true
		}
	}

	if cdata != nil {
		outputKeys := make([]string, 0, len(cdata.ProcessingSteps))
		for key := range cdata.ProcessingSteps {
			outputKeys = append(outputKeys, key)
		}
		sort.Strings(outputKeys)

		for _, key := range outputKeys {
			switch entry := cdata.ProcessingSteps[key].(type) {
			case map[string]any:
				if v, ok := entry[name]; ok && v != nil {
					return v, true
				}
			case domain.Fielder:
				if v, ok := entry.Field(name); ok && v != nil {
					return v, true
				}
			}
		}
	}

	return nil, false
}

// FillRequiredKeys дозаполняет пустые required-ключи из слоёв контекста.
// Уже заполненные ключи (в том числе extract-правилами) не трогаются.
func FillRequiredKeys(keys steps.Keys, file domain.FileRecord, step *domain.WorkflowStep, cdata *domain.ContextData) {
	for name := range keys {
		if !keys.Empty(name) {
			continue
		}
		if v, ok := ResolveKey(name, file, step, cdata); ok {
			keys[name] = v
		}
	}
}

// FillFromResponse дозаполняет required-ключи из ответа backend-а.
//
// Заполняются только ключи, пустые на входе; при списочном ответе
// более поздние записи перетирают значения более ранних, поэтому
// в итоге побеждает последняя запись, содержащая ключ.
func FillFromResponse(keys steps.Keys, resp any) {
	emptyAtEntry := make(map[string]bool, len(keys))
	for name := range keys {
		emptyAtEntry[name] = keys.Empty(name)
	}

	fill := func(record map[string]any) {
		for name := range keys {
			if !emptyAtEntry[name] {
				continue
			}
			if v, ok := record[name]; ok && v != nil {
				keys[name] = v
			}
		}
	}

	switch r := resp.(type) {
	case map[string]any:
		fill(r)
	case []any:
		for _, item := range r {
			if record, ok := item.(map[string]any); ok {
				fill(record)
			}
		}
	case []map[string]any:
		for _, record := range r {
			fill(record)
		}
	}
}

// MissingKeys возвращает отсортированный список required-ключей записи
// плана, оставшихся пустыми после всех слоёв разрешения.
func MissingKeys(keys steps.Keys, required []string) []string {
	var missing []string
	for _, name := range required {
		if keys.Empty(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// checkRequired проверяет, что все required-ключи записи плана заполнены.
func checkRequired(keys steps.Keys, required []string) error {
	missing := MissingKeys(keys, required)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", steps.ErrMissingKey, missing)
}
