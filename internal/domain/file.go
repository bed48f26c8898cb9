package domain

// FileRecord — метаданные обрабатываемого файла.
//
// Заполняется процессором на этапе извлечения метаданных и дополняется
// по ходу запуска (target_bucket_name, folder_name и т.д.). Ключи
// совпадают с именами required-ключей в call-плане, поэтому запись
// хранится как map: резолвер контекста ищет значения по имени ключа.
//
// Известные ключи:
//
//	file_path, file_path_parent, file_name, file_name_wo_ext,
//	file_extension, file_size, document_type, proceed_at,
//	target_bucket_name, folder_name, customer_foldername
type FileRecord map[string]any

// String возвращает строковое значение ключа (или "").
func (r FileRecord) String(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// DocumentType возвращает тип документа из записи.
func (r FileRecord) DocumentType() DocumentType {
	switch v := r["document_type"].(type) {
	case DocumentType:
		return v
	case string:
		return DocumentType(v)
	default:
		return ""
	}
}

// ParsedDocument — результат разбора документа процессором.
//
// Единая структура для всех типов документов: master data и заказов.
// Неизвестные поля исходного формата складываются в Extra
// (и логируются при разборе), а не принимаются молча.
type ParsedDocument struct {
	FilePath       string           `json:"file_path"`
	DocumentType   DocumentType     `json:"document_type"`
	Headers        []string         `json:"headers,omitempty"`
	Items          []map[string]any `json:"items"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	PONumber       string           `json:"po_number,omitempty"`
	Status         StepStatus       `json:"step_status,omitempty"`
	Messages       []string         `json:"messages,omitempty"`
	FileSize       string           `json:"file_size,omitempty"`
	StepDetail     []*StepDetail    `json:"step_detail,omitempty"`
	WorkflowDetail *WorkflowDetail  `json:"workflow_detail,omitempty"`
	JSONOutput     string           `json:"json_output,omitempty"`
	FileOutput     string           `json:"file_output,omitempty"`

	// Extra — поля, не входящие в известный набор.
	Extra map[string]any `json:"extra,omitempty"`
}

// Field возвращает значение по имени ключа required-контекста.
func (d *ParsedDocument) Field(name string) (any, bool) {
	if d == nil {
		return nil, false
	}
	switch name {
	case "file_path":
		return d.FilePath, true
	case "document_type":
		return d.DocumentType, true
	case "headers":
		return d.Headers, true
	case "items":
		return d.Items, true
	case "metadata":
		return d.Metadata, true
	case "po_number":
		return d.PONumber, true
	case "file_size":
		return d.FileSize, true
	case "json_output":
		return d.JSONOutput, true
	case "file_output":
		return d.FileOutput, true
	}
	if v, ok := d.Extra[name]; ok {
		return v, true
	}
	return nil, false
}

// WithRunDetail возвращает копию документа с внедрёнными метаданными запуска:
// деталями шагов, деталями workflow и ключом сохранённого результата.
func (d *ParsedDocument) WithRunDetail(stepDetail []*StepDetail, workflowDetail *WorkflowDetail, jsonOutput string) *ParsedDocument {
	clone := *d
	clone.StepDetail = stepDetail
	clone.WorkflowDetail = workflowDetail
	clone.JSONOutput = jsonOutput
	return &clone
}
