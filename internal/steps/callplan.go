package steps

import (
	"fmt"
	"strings"

	"github.com/shaiso/Docuflow/internal/backend"
)

// Keys — required-ключи одного выполнения шага: имя параметра → значение.
//
// Строится заново на каждое выполнение из объявлений call-плана
// и заполняется резолвером контекста; после шага отбрасывается.
type Keys map[string]any

// Empty возвращает true, если ключ отсутствует или пуст (nil или "").
func (k Keys) Empty(name string) bool {
	v, ok := k[name]
	if !ok || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// CallSpec — одна запись call-плана шага.
//
// Path строит путь запроса из required-ключей; nil Path означает
// локальный вызов — вместо HTTP выполняется бизнес-функция с именем
// Method, которой передаётся ответ предыдущей записи.
// Extract по ответу дозаполняет ключи для последующих записей плана.
type CallSpec struct {
	// Path — построитель пути запроса (nil для локальных записей).
	Path func(Keys) string

	// Method — HTTP-метод ("get"/"post") или имя локальной функции.
	Method string

	// RequiredContext — имена ключей, которые нужны этой записи.
	RequiredContext []string

	// Params — построитель query-параметров (nil — без параметров).
	Params func(Keys) map[string]any

	// Body — построитель тела запроса (nil — без тела).
	Body func(Keys) map[string]any

	// Extract — правило извлечения значений из ответа в Keys.
	Extract func(resp any, keys Keys) error
}

// IsLocal возвращает true для локальной (не-HTTP) записи плана.
func (s CallSpec) IsLocal() bool {
	return s.Path == nil
}

// Plan — упорядоченный call-план шага.
type Plan struct {
	// Name — ключ таблицы планов, по которому план был найден.
	Name string

	// Calls — записи плана в порядке выполнения.
	Calls []CallSpec
}

// RequiredKeys возвращает свежую map required-ключей плана
// (все значения nil).
func (p *Plan) RequiredKeys() Keys {
	keys := make(Keys)
	if p == nil {
		return keys
	}
	for _, call := range p.Calls {
		for _, name := range call.RequiredContext {
			if _, ok := keys[name]; !ok {
				keys[name] = nil
			}
		}
	}
	return keys
}

// planEntry — элемент таблицы планов. Таблица упорядочена,
// чтобы матчинг был детерминированным.
type planEntry struct {
	key   string
	calls []CallSpec
}

// PlanFor возвращает call-план для канонического имени шага.
//
// Точное совпадение ключа таблицы имеет приоритет; иначе берётся первый
// ключ, входящий в имя как подстрока (динамические имена вида
// "[RULE_MP]_SUBMIT" матчатся по содержащемуся "SUBMIT").
// Возвращает nil, если плана нет — это валидно для чисто локальных шагов.
func PlanFor(canonicalName string) *Plan {
	upper := strings.ToUpper(canonicalName)

	for _, entry := range planTable {
		if upper == entry.key {
			return &Plan{Name: entry.key, Calls: entry.calls}
		}
	}
	for _, entry := range planTable {
		if strings.Contains(upper, entry.key) {
			return &Plan{Name: entry.key, Calls: entry.calls}
		}
	}
	return nil
}

// planTable — декларативная таблица call-планов по каноническим шагам.
//
// Поля-построители — чистые функции от required-ключей; таблица
// никогда не мутирует в рантайме.
var planTable = []planEntry{
	{
		key: "FILE_PARSE",
		calls: []CallSpec{
			{
				Path:            staticPath(backend.PathTemplateParse),
				Method:          "get",
				RequiredContext: []string{"workflowStepId"},
				Params:          paramsFrom("workflowStepId"),
			},
		},
	},
	{
		key: "VALIDATE_HEADER",
		calls: []CallSpec{
			{
				Path:            staticPath(backend.PathHeaderValidation),
				Method:          "get",
				RequiredContext: []string{"file_name"},
				Params: func(k Keys) map[string]any {
					return map[string]any{"fileName": k["file_name"]}
				},
			},
		},
	},
	{
		key: "VALIDATE_DATA",
		calls: []CallSpec{
			{
				Path:            staticPath(backend.PathColumnValidation),
				Method:          "get",
				RequiredContext: []string{"file_name"},
				Params: func(k Keys) map[string]any {
					return map[string]any{"fileName": k["file_name"]}
				},
			},
		},
	},
	{
		key: "MASTER_DATA_LOAD",
		calls: []CallSpec{
			{
				Path:            staticPath(backend.PathMasterDataLoad),
				Method:          "post",
				RequiredContext: []string{"file_name_wo_ext", "items"},
				Body: func(k Keys) map[string]any {
					return map[string]any{
						"fileName": k["file_name_wo_ext"],
						"data":     k["items"],
					}
				},
			},
		},
	},
	{
		key: "TEMPLATE_FORMAT_VALIDATION",
		calls: []CallSpec{
			{
				Path:            staticPath(backend.PathTemplateParse),
				Method:          "get",
				RequiredContext: []string{"workflowStepId"},
				Params:          paramsFrom("workflowStepId"),
				Extract:         extractTemplateFileParseID,
			},
			{
				Path: func(k Keys) string {
					return fmt.Sprintf("%s/%v", backend.PathFormatValidation, k["templateFileParseId"])
				},
				Method:          "get",
				RequiredContext: []string{"templateFileParseId"},
			},
		},
	},
	{
		key: "TEMPLATE_DATA_MAPPING",
		calls: []CallSpec{
			{
				Path:            staticPath(backend.PathTemplateParse),
				Method:          "get",
				RequiredContext: []string{"workflowStepId"},
				Params:          paramsFrom("workflowStepId"),
				Extract:         extractTemplateFileParseID,
			},
			{
				Path:            staticPath(backend.PathDataMapping),
				Method:          "get",
				RequiredContext: []string{"templateFileParseId"},
				Params:          paramsFrom("templateFileParseId"),
			},
		},
	},
	{
		key: "TEMPLATE_PUBLISH_DATA",
		calls: []CallSpec{
			{
				Path:            workflowStepPath,
				Method:          "get",
				RequiredContext: []string{"workflowStepId"},
				Extract: func(resp any, keys Keys) error {
					id, ok := dig(resp, "connectionDto", "id")
					if !ok {
						return fmt.Errorf("%w: connectionDto.id not in response", ErrExtract)
					}
					keys["connectionId"] = id
					return nil
				},
			},
			{
				// Локальный вызов: копирование выходного файла в зону
				// публикации. Ответом служит fileOutputLink.
				Method:          FuncCopyFile,
				RequiredContext: []string{"file_path"},
				Extract: func(resp any, keys Keys) error {
					link, ok := dig(resp, "fileOutputLink")
					if !ok {
						return fmt.Errorf("%w: fileOutputLink not in copy result", ErrExtract)
					}
					keys["fileOutputLink"] = link
					return nil
				},
			},
			{
				Path:            staticPath(backend.PathPublishData),
				Method:          "post",
				RequiredContext: []string{"connectionId", "fileOutputLink"},
				Body: func(k Keys) map[string]any {
					return map[string]any{
						"connectionId":   k["connectionId"],
						"fileOutputLink": k["fileOutputLink"],
					}
				},
			},
		},
	},
	{
		key: "METADATA_EXTRACT",
		calls: []CallSpec{
			{
				Path:            workflowStepPath,
				Method:          "get",
				RequiredContext: []string{"workflowStepId"},
			},
		},
	},
	{
		key: "XSL_TRANSLATION",
		calls: []CallSpec{
			{
				Path:            workflowStepPath,
				Method:          "get",
				RequiredContext: []string{"workflowStepId"},
			},
		},
	},
	{
		key: "SUBMIT",
		calls: []CallSpec{
			{
				Path:            workflowStepPath,
				Method:          "get",
				RequiredContext: []string{"workflowStepId"},
			},
		},
	},
	{
		key: "SEND_TO",
		calls: []CallSpec{
			{
				Path:            workflowStepPath,
				Method:          "get",
				RequiredContext: []string{"workflowStepId"},
			},
		},
	},
	{
		key: "RENAME",
		calls: []CallSpec{
			{
				Path:            workflowStepPath,
				Method:          "get",
				RequiredContext: []string{"workflowStepId"},
			},
		},
	},
}

// staticPath возвращает построитель константного пути.
func staticPath(path string) func(Keys) string {
	return func(Keys) string { return path }
}

// workflowStepPath строит путь "/api/workflow/step/{id}".
func workflowStepPath(k Keys) string {
	return fmt.Sprintf("%s/%v", backend.PathWorkflowStep, k["workflowStepId"])
}

// paramsFrom возвращает построитель query-параметров,
// копирующий перечисленные ключи как есть.
func paramsFrom(names ...string) func(Keys) map[string]any {
	return func(k Keys) map[string]any {
		params := make(map[string]any, len(names))
		for _, name := range names {
			params[name] = k[name]
		}
		return params
	}
}

// extractTemplateFileParseID достаёт id шаблона парсинга
// из ответа /api/template/template-parse.
func extractTemplateFileParseID(resp any, keys Keys) error {
	id, ok := dig(resp, "0", "templateFileParse", "id")
	if !ok {
		return fmt.Errorf("%w: templateFileParse.id not in response", ErrExtract)
	}
	keys["templateFileParseId"] = id
	return nil
}

// dig спускается по вложенным map/список-структурам ответа.
// Сегмент "0" означает первый элемент списка.
func dig(v any, path ...string) (any, bool) {
	cur := v
	for _, seg := range path {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			if seg != "0" || len(node) == 0 {
				return nil, false
			}
			cur = node[0]
		case []map[string]any:
			if seg != "0" || len(node) == 0 {
				return nil, false
			}
			cur = node[0]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}
