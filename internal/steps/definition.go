package steps

import (
	"fmt"
	"sort"
)

// Имена бизнес-функций процессора.
//
// Реестр ссылается на функции по строковым идентификаторам; сами
// реализации регистрируются процессором (см. internal/processors).
const (
	FuncParseFileToJSON    = "parse_file_to_json"
	FuncValidateHeader     = "validate_header"
	FuncValidateData       = "validate_data"
	FuncLoadMasterData     = "load_master_data"
	FuncTemplateValidation = "template_validation"
	FuncTemplateMapping    = "template_mapping"
	FuncMetadataExtract    = "metadata_extract"
	FuncXSLTranslation     = "xsl_translation"
	FuncRenameFile         = "rename_file"
	FuncSubmitData         = "submit_data"
	FuncSendTo             = "send_to"
	FuncPublishData        = "publish_data"
	FuncCopyFile           = "copy_file"
	FuncWriteJSONToS3      = "write_json_to_s3"
	FuncWriteRawToS3       = "write_raw_to_s3"
)

// Definition — статическое определение шага.
//
// Описывает, какая бизнес-функция обрабатывает шаг, откуда она читает
// вход (ключ в ProcessingSteps), куда пишет выход, какие kwargs ей
// нужны и в какую папку хранилища складывается результат.
type Definition struct {
	// FunctionName — идентификатор бизнес-функции процессора.
	FunctionName string

	// DataInput — ключ контекста, из которого берётся вход шага.
	// Пустая строка — входа нет.
	DataInput string

	// DataOutput — ключ контекста, под которым сохраняется результат.
	// Пустая строка — результат не сохраняется в контекст.
	DataOutput string

	// RequireDataAPI — шаг обязан получить ответ backend API.
	RequireDataAPI bool

	// RequireDataOutput — DataOutput обязателен.
	// Инвариант проверяется при загрузке реестра.
	RequireDataOutput bool

	// TargetStoreData — папка объектного хранилища для результата шага.
	TargetStoreData string

	// Kwargs — required-аргументы функции: имя → значение по умолчанию.
	// Реестр хранит шаблон; перед вызовом диспетчер копирует map
	// и дозаполняет её из последнего ответа backend-а.
	Kwargs map[string]any
}

// Validate проверяет инварианты определения.
func (d Definition) Validate() error {
	if d.FunctionName == "" {
		return fmt.Errorf("%w: function name is empty", ErrInvalidDefinition)
	}
	if d.RequireDataOutput && d.DataOutput == "" {
		return fmt.Errorf("%w: data_output is required when require_data_output is set", ErrInvalidDefinition)
	}
	return nil
}

// CloneKwargs возвращает копию шаблона kwargs для одного вызова.
func (d Definition) CloneKwargs() map[string]any {
	kwargs := make(map[string]any, len(d.Kwargs))
	for k, v := range d.Kwargs {
		kwargs[k] = v
	}
	return kwargs
}

// Registry — реестр определений шагов.
//
// Строится один раз при старте процесса из литеральной таблицы.
// Lookup принимает только каноническое имя (см. Canonicalize).
type Registry struct {
	defs map[string]Definition
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register добавляет определение шага.
// Возвращает ErrInvalidDefinition при нарушении инвариантов.
func (r *Registry) Register(name string, def Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("step %s: %w", name, err)
	}
	r.defs[name] = def
	return nil
}

// mustRegister — Register для литеральной таблицы.
// Невалидная запись в таблице — ошибка конфигурации процесса.
func (r *Registry) mustRegister(name string, def Definition) {
	if err := r.Register(name, def); err != nil {
		panic(err)
	}
}

// Lookup возвращает определение по каноническому имени шага.
func (r *Registry) Lookup(name string) (Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrStepNotFound, name)
	}
	return def, nil
}

// Has проверяет наличие определения.
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Names возвращает отсортированный список канонических имён.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count возвращает количество определений.
func (r *Registry) Count() int {
	return len(r.defs)
}

// DefaultRegistry создаёт реестр со всеми шагами обработки документов.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.mustRegister("FILE_PARSE", Definition{
		FunctionName:      FuncParseFileToJSON,
		DataOutput:        "file_parse",
		RequireDataAPI:    true,
		RequireDataOutput: true,
		TargetStoreData:   "workflow-node-materialized",
	})

	r.mustRegister("VALIDATE_HEADER", Definition{
		FunctionName:    FuncValidateHeader,
		DataInput:       "file_parse",
		DataOutput:      "validate_header",
		RequireDataAPI:  true,
		TargetStoreData: "workflow-node-materialized",
	})

	r.mustRegister("VALIDATE_DATA", Definition{
		FunctionName:    FuncValidateData,
		DataInput:       "file_parse",
		DataOutput:      "validate_data",
		RequireDataAPI:  true,
		TargetStoreData: "workflow-node-materialized",
	})

	r.mustRegister("MASTER_DATA_LOAD", Definition{
		FunctionName:    FuncLoadMasterData,
		DataInput:       "file_parse",
		DataOutput:      "master_data_load",
		RequireDataAPI:  true,
		TargetStoreData: "process_data",
	})

	r.mustRegister("TEMPLATE_FORMAT_VALIDATION", Definition{
		FunctionName:      FuncTemplateValidation,
		DataInput:         "file_parse",
		DataOutput:        "template_validation",
		RequireDataAPI:    true,
		RequireDataOutput: true,
		TargetStoreData:   "workflow-node-materialized",
	})

	r.mustRegister("TEMPLATE_DATA_MAPPING", Definition{
		FunctionName:      FuncTemplateMapping,
		DataInput:         "template_validation",
		DataOutput:        "template_mapping",
		RequireDataAPI:    true,
		RequireDataOutput: true,
		TargetStoreData:   "workflow-node-materialized",
	})

	r.mustRegister("TEMPLATE_PUBLISH_DATA", Definition{
		FunctionName:    FuncPublishData,
		DataInput:       "template_mapping",
		DataOutput:      "publish_data",
		RequireDataAPI:  true,
		TargetStoreData: "workflow-node-materialized",
		Kwargs:          map[string]any{"connectionDto": nil},
	})

	r.mustRegister("[RULE_MP]_METADATA_EXTRACT", Definition{
		FunctionName:    FuncMetadataExtract,
		DataInput:       "file_parse",
		DataOutput:      "metadata_extract",
		TargetStoreData: "workflow-node-materialized",
		Kwargs:          map[string]any{"stepConfiguration": nil},
	})

	r.mustRegister("[RULE_MP]_XSL_TRANSLATION", Definition{
		FunctionName:    FuncXSLTranslation,
		DataInput:       "metadata_extract",
		DataOutput:      "xsl_translation",
		TargetStoreData: "workflow-node-materialized",
		Kwargs:          map[string]any{"stepConfiguration": nil},
	})

	r.mustRegister("[RULE_MP]_RENAME", Definition{
		FunctionName:    FuncRenameFile,
		DataInput:       "xsl_translation",
		DataOutput:      "rename",
		TargetStoreData: "workflow-node-materialized",
		Kwargs:          map[string]any{"stepConfiguration": nil},
	})

	r.mustRegister("[RULE_MP]_SUBMIT", Definition{
		FunctionName:    FuncSubmitData,
		DataInput:       "template_mapping",
		DataOutput:      "submit",
		TargetStoreData: "workflow-node-materialized",
		Kwargs:          map[string]any{"stepConfiguration": nil},
	})

	r.mustRegister("[RULE_MP]_SEND_TO", Definition{
		FunctionName:    FuncSendTo,
		DataInput:       "rename",
		DataOutput:      "send_to",
		TargetStoreData: "workflow-node-materialized",
		Kwargs:          map[string]any{"stepConfiguration": nil},
	})

	return r
}
