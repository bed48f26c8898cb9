package storage

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Именование ключей результатов шагов:
//
//	{folder}/{YYYY-MM-DD}/{NN}_{stepName}/{stem}.json
//	{folder}/{YYYY-MM-DD}/{NN}_{stepName}/{stem}_rerun_{attempt}.json
//
// folder — TargetStoreData определения шага, NN — порядковый номер шага
// с ведущим нулём, stem — имя исходного файла без расширения.

// FileStem возвращает имя файла без расширения.
func FileStem(filePath string) string {
	base := path.Base(filePath)
	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// StepFolder возвращает сегмент шага "{NN}_{stepName}".
func StepFolder(stepOrder int, stepName string) string {
	return fmt.Sprintf("%02d_%s", stepOrder, stepName)
}

// StepPrefix строит префикс ключей результата шага за конкретную дату.
func StepPrefix(folder string, date time.Time, stepOrder int, stepName string) string {
	return path.Join(folder, date.Format("2006-01-02"), StepFolder(stepOrder, stepName))
}

// ResultKey строит ключ результата шага.
// attempt 0 — основной запуск, больше нуля — rerun.
func ResultKey(folder string, date time.Time, stepOrder int, stepName, filePath string, attempt int) string {
	name := FileStem(filePath)
	if attempt > 0 {
		name = fmt.Sprintf("%s_rerun_%d", name, attempt)
	}
	return path.Join(StepPrefix(folder, date, stepOrder, stepName), name+".json")
}

var rerunSuffix = regexp.MustCompile(`_rerun_(\d+)$`)

// SelectLatestResult выбирает из ключей наиболее свежий результат шага
// для данного файла: rerun с максимальным номером попытки, иначе
// результат основного запуска. Возвращает ("", false), если подходящих
// ключей нет.
//
// maxAttempt > 0 ограничивает поиск попытками строго меньше указанной:
// при rerun номер N входом служат результаты попыток до N.
func SelectLatestResult(keys []string, filePath string, maxAttempt int) (string, bool) {
	stem := FileStem(filePath)

	best := ""
	bestAttempt := -1
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		name := strings.TrimSuffix(path.Base(key), ".json")

		attempt := 0
		if m := rerunSuffix.FindStringSubmatch(name); m != nil {
			attempt, _ = strconv.Atoi(m[1])
			name = name[:len(name)-len(m[0])]
		}
		if name != stem {
			continue
		}
		if maxAttempt > 0 && attempt >= maxAttempt {
			continue
		}
		if attempt > bestAttempt {
			bestAttempt = attempt
			best = key
		}
	}
	return best, bestAttempt >= 0 && best != ""
}
