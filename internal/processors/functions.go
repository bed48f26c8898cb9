package processors

import (
	"context"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/engine"
	"github.com/shaiso/Docuflow/internal/storage"
	"github.com/shaiso/Docuflow/internal/telemetry"
)

// parseFileToJSON разбирает исходный файл в ParsedDocument.
//
// Ответ backend-а (шаблон парсинга) прикладывается к метаданным
// документа: последующие шаги валидации и маппинга читают его оттуда.
func (p *Processor) parseFileToJSON(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	filePath := inv.File.String("file_path")
	if filePath == "" {
		return nil, fmt.Errorf("%w: file_path", ErrNoInput)
	}

	data, err := p.readSource(ctx, inv.Tracking, filePath)
	if err != nil {
		return nil, err
	}

	parser, err := p.parsers.ForFile(filePath)
	if err != nil {
		return nil, err
	}

	doc, err := parser.Parse(filePath, data)
	if err != nil {
		return nil, err
	}

	doc.DocumentType = inv.File.DocumentType()
	doc.FileSize = fmt.Sprintf("%d", len(data))
	if inv.Response != nil {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any)
		}
		doc.Metadata["parse_template"] = inv.Response
	}

	return domain.NewSuccessOutput(doc, map[string]any{
		"row_count": len(doc.Items),
	}), nil
}

// readSource читает исходный файл: с диска при source=local,
// иначе из объектного хранилища.
func (p *Processor) readSource(ctx context.Context, tracking *domain.Tracking, filePath string) ([]byte, error) {
	if tracking != nil && tracking.SourceName == string(domain.SourceLocal) {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read source file: %w", err)
		}
		return data, nil
	}
	return p.storage.Read(ctx, p.bucket, strings.TrimPrefix(filePath, "/"))
}

// validateHeader проверяет наличие обязательных колонок.
//
// Правила из backend-а: список {"columnName", "isRequired"}.
func (p *Processor) validateHeader(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	doc, err := documentInput(inv.DataInput)
	if err != nil {
		return nil, err
	}
	rules, err := ruleList(inv.Response)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(doc.Headers))
	for _, h := range doc.Headers {
		present[h] = true
	}

	var missing []string
	for _, rule := range rules {
		column := ruleString(rule, "columnName")
		if column == "" || !ruleBool(rule, "isRequired") {
			continue
		}
		if !present[column] {
			missing = append(missing, fmt.Sprintf("required column %q is missing", column))
		}
	}
	if len(missing) > 0 {
		return domain.NewFailedOutput(doc, missing...), nil
	}

	return domain.NewSuccessOutput(doc, map[string]any{
		"columns_checked": len(rules),
	}), nil
}

// validateData проверяет заполненность обязательных колонок в записях.
func (p *Processor) validateData(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	doc, err := documentInput(inv.DataInput)
	if err != nil {
		return nil, err
	}
	rules, err := ruleList(inv.Response)
	if err != nil {
		return nil, err
	}

	var problems []string
	for _, rule := range rules {
		column := ruleString(rule, "columnName")
		if column == "" || !ruleBool(rule, "isRequired") {
			continue
		}
		for i, item := range doc.Items {
			val, ok := item[column]
			if !ok || val == nil || val == "" {
				problems = append(problems, fmt.Sprintf("row %d: column %q is empty", i+1, column))
			}
		}
	}
	if len(problems) > 0 {
		return domain.NewFailedOutput(doc, problems...), nil
	}

	return domain.NewSuccessOutput(doc, map[string]any{
		"rows_checked": len(doc.Items),
	}), nil
}

// loadMasterData фиксирует результат загрузки мастер-данных.
// Сами данные backend получил в теле запроса call-плана.
func (p *Processor) loadMasterData(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	doc, err := documentInput(inv.DataInput)
	if err != nil {
		return nil, err
	}

	return domain.NewSuccessOutput(inv.Response, map[string]any{
		"rows_loaded": len(doc.Items),
	}), nil
}

// templateValidation валидирует записи по правилам формата шаблона.
//
// Правила: список {"columnName", "pattern"} — regex-проверка значений.
func (p *Processor) templateValidation(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	doc, err := documentInput(inv.DataInput)
	if err != nil {
		return nil, err
	}
	rules, err := ruleList(inv.Response)
	if err != nil {
		return nil, err
	}

	var problems []string
	for _, rule := range rules {
		column := ruleString(rule, "columnName")
		pattern := ruleString(rule, "pattern")
		if column == "" || pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q pattern: %v", ErrBadRules, column, err)
		}
		for i, item := range doc.Items {
			val, ok := item[column]
			if !ok || val == nil {
				continue
			}
			if !re.MatchString(fmt.Sprintf("%v", val)) {
				problems = append(problems, fmt.Sprintf("row %d: column %q does not match format", i+1, column))
			}
		}
	}
	if len(problems) > 0 {
		return domain.NewFailedOutput(doc, problems...), nil
	}

	return domain.NewSuccessOutput(doc, map[string]any{
		"rules_applied": len(rules),
	}), nil
}

// templateMapping переименовывает колонки записей по правилам маппинга.
//
// Правила: список {"sourceColumn", "targetColumn"}.
func (p *Processor) templateMapping(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	doc, err := documentInput(inv.DataInput)
	if err != nil {
		return nil, err
	}
	rules, err := ruleList(inv.Response)
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(rules))
	for _, rule := range rules {
		src := ruleString(rule, "sourceColumn")
		dst := ruleString(rule, "targetColumn")
		if src != "" && dst != "" {
			mapping[src] = dst
		}
	}

	mapped := *doc
	mapped.Items = make([]map[string]any, 0, len(doc.Items))
	for _, item := range doc.Items {
		record := make(map[string]any, len(item))
		for key, val := range item {
			if target, ok := mapping[key]; ok {
				record[target] = val
			} else {
				record[key] = val
			}
		}
		mapped.Items = append(mapped.Items, record)
	}

	headers := make([]string, 0, len(doc.Headers))
	for _, h := range doc.Headers {
		if target, ok := mapping[h]; ok {
			headers = append(headers, target)
		} else {
			headers = append(headers, h)
		}
	}
	mapped.Headers = headers

	return domain.NewSuccessOutput(&mapped, map[string]any{
		"columns_mapped": len(mapping),
	}), nil
}

// metadataExtract извлекает метаданные документа по конфигурации шага.
//
// Конфигурация (kwargs stepConfiguration): список {"field"} — имена
// полей, которые ищутся в метаданных и первой записи документа.
func (p *Processor) metadataExtract(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	log := telemetry.FromContext(ctx)

	doc, err := documentInput(inv.DataInput)
	if err != nil {
		return nil, err
	}
	config, err := ruleList(inv.Kwargs["stepConfiguration"])
	if err != nil {
		return nil, err
	}

	extracted := make(map[string]any)
	for _, entry := range config {
		field := ruleString(entry, "field")
		if field == "" {
			continue
		}
		if val, ok := doc.Metadata[field]; ok {
			extracted[field] = val
			continue
		}
		if len(doc.Items) > 0 {
			if val, ok := doc.Items[0][field]; ok {
				extracted[field] = val
				continue
			}
		}
		log.Warn("metadata field not found", "field", field)
	}

	if doc.PONumber != "" {
		extracted["po_number"] = doc.PONumber
	}
	extracted["file_path"] = doc.FilePath
	extracted["document_type"] = string(doc.DocumentType)

	return domain.NewSuccessOutput(extracted, map[string]any{
		"fields_extracted": len(extracted),
	}), nil
}

// xslTranslation переводит извлечённые метаданные в целевые поля.
//
// Конфигурация: список {"source", "target"} — какие поля метаданных
// под какими именами нужны целевой системе.
func (p *Processor) xslTranslation(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	meta, err := mapInput(inv.DataInput)
	if err != nil {
		return nil, err
	}
	config, err := ruleList(inv.Kwargs["stepConfiguration"])
	if err != nil {
		return nil, err
	}

	translated := make(map[string]any)
	var missing []string
	for _, entry := range config {
		source := ruleString(entry, "source")
		target := ruleString(entry, "target")
		if source == "" || target == "" {
			continue
		}
		val, ok := meta[source]
		if !ok {
			missing = append(missing, fmt.Sprintf("metadata field %q is missing", source))
			continue
		}
		translated[target] = val
	}
	if len(missing) > 0 {
		return domain.NewFailedOutput(meta, missing...), nil
	}

	// Сквозные поля нужны дальше по цепочке (rename, send_to).
	for _, key := range []string{"file_path", "po_number"} {
		if val, ok := meta[key]; ok {
			translated[key] = val
		}
	}

	return domain.NewSuccessOutput(translated, map[string]any{
		"fields_translated": len(config),
	}), nil
}

// renameFile переименовывает файл в хранилище по конфигурации шага.
//
// Новое имя: значение поля pattern конфигурации с подстановками
// {stem} и {po_number}; по умолчанию "{stem}_{po_number}".
func (p *Processor) renameFile(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	fields, err := mapInput(inv.DataInput)
	if err != nil {
		return nil, err
	}

	srcPath, _ := fields["file_path"].(string)
	if srcPath == "" {
		srcPath = inv.File.String("file_path")
	}
	if srcPath == "" {
		return nil, fmt.Errorf("%w: file_path", ErrNoInput)
	}

	pattern := "{stem}_{po_number}"
	if config, err := ruleList(inv.Kwargs["stepConfiguration"]); err == nil {
		for _, entry := range config {
			if custom := ruleString(entry, "pattern"); custom != "" {
				pattern = custom
			}
		}
	}

	poNumber, _ := fields["po_number"].(string)
	stem := storage.FileStem(srcPath)
	newName := strings.NewReplacer(
		"{stem}", stem,
		"{po_number}", poNumber,
	).Replace(pattern)
	newName = strings.Trim(newName, "_")

	ext := path.Ext(srcPath)
	dstKey := path.Join(path.Dir(strings.TrimPrefix(srcPath, "/")), newName+ext)
	srcKey := strings.TrimPrefix(srcPath, "/")
	if err := p.storage.Copy(ctx, p.bucket, srcKey, p.bucket, dstKey); err != nil {
		return nil, err
	}

	result := map[string]any{
		"file_path": dstKey,
		"file_name": newName + ext,
	}
	return domain.NewSuccessOutput(result, map[string]any{
		"renamed_from": srcKey,
	}), nil
}

// submitData фиксирует передачу смаппленных данных в целевую систему.
func (p *Processor) submitData(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	doc, err := documentInput(inv.DataInput)
	if err != nil {
		return nil, err
	}

	return domain.NewSuccessOutput(inv.Response, map[string]any{
		"items_submitted": len(doc.Items),
	}), nil
}

// sendTo копирует файл в папку назначения клиента.
func (p *Processor) sendTo(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	fields, err := mapInput(inv.DataInput)
	if err != nil {
		return nil, err
	}

	srcKey, _ := fields["file_path"].(string)
	if srcKey == "" {
		return nil, fmt.Errorf("%w: file_path", ErrNoInput)
	}

	folder := inv.File.String("customer_foldername")
	if folder == "" {
		folder = inv.File.String("folder_name")
	}
	if folder == "" {
		folder = "outbound"
	}

	bucket := inv.File.String("target_bucket_name")
	if bucket == "" {
		bucket = p.bucket
	}

	dstKey := path.Join(folder, path.Base(srcKey))
	if err := p.storage.Copy(ctx, p.bucket, srcKey, bucket, dstKey); err != nil {
		return nil, err
	}

	result := map[string]any{
		"file_output_link": dstKey,
		"target_bucket":    bucket,
	}
	return domain.NewSuccessOutput(result, nil), nil
}

// publishData фиксирует результат публикации во внешнюю систему.
func (p *Processor) publishData(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	return domain.NewSuccessOutput(inv.Response, map[string]any{
		"connection": inv.Kwargs["connectionDto"],
	}), nil
}

// copyFile — локальный вызов call-плана: копирует файл в зону
// публикации и возвращает ссылку на копию (fileOutputLink).
func (p *Processor) copyFile(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	srcPath, _ := inv.Kwargs["file_path"].(string)
	if srcPath == "" {
		srcPath = inv.File.String("file_path")
	}
	if srcPath == "" {
		return nil, fmt.Errorf("%w: file_path", ErrNoInput)
	}

	srcKey := strings.TrimPrefix(srcPath, "/")
	dstKey := path.Join("publish", inv.Tracking.RequestID, path.Base(srcKey))
	if err := p.storage.Copy(ctx, p.bucket, srcKey, p.bucket, dstKey); err != nil {
		return nil, err
	}

	return domain.NewSuccessOutput(map[string]any{
		"fileOutputLink": dstKey,
	}, nil), nil
}

// writeJSONToS3 сохраняет вход шага как JSON-объект в папке шага.
func (p *Processor) writeJSONToS3(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	if inv.DataInput == nil {
		return nil, ErrNoInput
	}

	folder := inv.TargetFolder
	if folder == "" {
		folder = "workflow-node-materialized"
	}
	key := path.Join(folder, inv.Tracking.RequestID, storage.FileStem(inv.File.String("file_path"))+".json")
	if err := p.storage.WriteJSON(ctx, p.bucket, key, inv.DataInput); err != nil {
		return nil, err
	}

	return domain.NewSuccessOutput(map[string]any{
		"json_output": key,
	}, nil), nil
}

// writeRawToS3 сохраняет текстовое содержимое входа как объект.
// Вход — map с полями content и key.
func (p *Processor) writeRawToS3(ctx context.Context, inv *engine.Invocation) (*domain.StepOutput, error) {
	fields, err := mapInput(inv.DataInput)
	if err != nil {
		return nil, err
	}

	content, _ := fields["content"].(string)
	key, _ := fields["key"].(string)
	if content == "" || key == "" {
		return nil, fmt.Errorf("%w: content and key are required", ErrBadInput)
	}

	if err := p.storage.Write(ctx, p.bucket, key, []byte(content), "application/octet-stream"); err != nil {
		return nil, err
	}

	return domain.NewSuccessOutput(map[string]any{
		"file_output": key,
	}, nil), nil
}
