package processors

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/engine"
	"github.com/shaiso/Docuflow/internal/steps"
	"github.com/shaiso/Docuflow/internal/storage"
)

// Ошибки процессора.
var (
	// ErrNoInput — шагу не передан обязательный вход.
	ErrNoInput = errors.New("step input is missing")

	// ErrBadInput — вход шага имеет неожиданную форму.
	ErrBadInput = errors.New("step input has unexpected shape")

	// ErrBadRules — правила из backend-а имеют неожиданную форму.
	ErrBadRules = errors.New("backend rules have unexpected shape")
)

// Processor — реализация бизнес-функций шагов.
//
// Регистрирует все функции обработки документов и отдаёт их движку
// по строковым идентификаторам (engine.FunctionResolver).
type Processor struct {
	parsers *ParserRegistry
	storage *storage.Storage
	bucket  string

	funcs map[string]engine.StepFunc
}

// NewProcessor создаёт процессор со всеми функциями обработки.
func NewProcessor(parsers *ParserRegistry, store *storage.Storage, bucket string) *Processor {
	p := &Processor{
		parsers: parsers,
		storage: store,
		bucket:  bucket,
		funcs:   make(map[string]engine.StepFunc),
	}

	p.register(steps.FuncParseFileToJSON, p.parseFileToJSON)
	p.register(steps.FuncValidateHeader, p.validateHeader)
	p.register(steps.FuncValidateData, p.validateData)
	p.register(steps.FuncLoadMasterData, p.loadMasterData)
	p.register(steps.FuncTemplateValidation, p.templateValidation)
	p.register(steps.FuncTemplateMapping, p.templateMapping)
	p.register(steps.FuncMetadataExtract, p.metadataExtract)
	p.register(steps.FuncXSLTranslation, p.xslTranslation)
	p.register(steps.FuncRenameFile, p.renameFile)
	p.register(steps.FuncSubmitData, p.submitData)
	p.register(steps.FuncSendTo, p.sendTo)
	p.register(steps.FuncPublishData, p.publishData)
	p.register(steps.FuncCopyFile, p.copyFile)
	p.register(steps.FuncWriteJSONToS3, p.writeJSONToS3)
	p.register(steps.FuncWriteRawToS3, p.writeRawToS3)

	return p
}

func (p *Processor) register(name string, fn engine.StepFunc) {
	p.funcs[name] = fn
}

// Resolve отдаёт бизнес-функцию по идентификатору.
func (p *Processor) Resolve(functionName string) (engine.StepFunc, bool) {
	fn, ok := p.funcs[functionName]
	return fn, ok
}

// documentInput достаёт разобранный документ из входа шага.
//
// Вход может быть *StepOutput свежего запуска (Data — *ParsedDocument)
// или восстановленный из JSON при rerun (Data — map). Обе формы
// приводятся к *ParsedDocument.
func documentInput(input any) (*domain.ParsedDocument, error) {
	if input == nil {
		return nil, ErrNoInput
	}
	if out, ok := input.(*domain.StepOutput); ok {
		return asDocument(out.Data)
	}
	return asDocument(input)
}

// asDocument приводит значение к *ParsedDocument.
func asDocument(v any) (*domain.ParsedDocument, error) {
	switch doc := v.(type) {
	case *domain.ParsedDocument:
		return doc, nil
	case map[string]any:
		buf, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		var parsed domain.ParsedDocument
		if err := json.Unmarshal(buf, &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		return &parsed, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadInput, v)
	}
}

// mapInput достаёт map-результат предыдущего шага.
func mapInput(input any) (map[string]any, error) {
	if input == nil {
		return nil, ErrNoInput
	}
	if out, ok := input.(*domain.StepOutput); ok {
		input = out.Data
	}
	m, ok := input.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrBadInput, input)
	}
	return m, nil
}

// ruleList приводит ответ backend-а к списку правил.
func ruleList(resp any) ([]map[string]any, error) {
	switch rules := resp.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return rules, nil
	case []any:
		out := make([]map[string]any, 0, len(rules))
		for _, item := range rules {
			rule, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: rule is %T", ErrBadRules, item)
			}
			out = append(out, rule)
		}
		return out, nil
	case map[string]any:
		return []map[string]any{rules}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadRules, resp)
	}
}

// ruleString возвращает строковое поле правила.
func ruleString(rule map[string]any, key string) string {
	if s, ok := rule[key].(string); ok {
		return s
	}
	return ""
}

// ruleBool возвращает булево поле правила.
func ruleBool(rule map[string]any, key string) bool {
	if b, ok := rule[key].(bool); ok {
		return b
	}
	return false
}
