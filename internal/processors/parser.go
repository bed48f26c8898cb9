package processors

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shaiso/Docuflow/internal/domain"
)

// Ошибки разбора файлов.
var (
	// ErrUnsupportedFormat — для расширения файла нет парсера.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile — файл пуст или не содержит записей.
	ErrEmptyFile = errors.New("file has no records")
)

// Parser разбирает содержимое файла в ParsedDocument.
type Parser interface {
	Parse(filePath string, data []byte) (*domain.ParsedDocument, error)
}

// ParserRegistry — парсеры по расширению файла.
type ParserRegistry struct {
	parsers map[string]Parser
}

// NewParserRegistry создаёт реестр с парсерами по умолчанию:
// CSV (".csv", ".txt") и JSON (".json").
func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{parsers: make(map[string]Parser)}
	r.Register(".csv", &CSVParser{Separator: ','})
	r.Register(".txt", &CSVParser{Separator: ';'})
	r.Register(".json", &JSONParser{})
	return r
}

// Register добавляет парсер для расширения (с точкой, в нижнем регистре).
func (r *ParserRegistry) Register(ext string, p Parser) {
	r.parsers[strings.ToLower(ext)] = p
}

// ForFile возвращает парсер для файла по его расширению.
func (r *ParserRegistry) ForFile(filePath string) (Parser, error) {
	idx := strings.LastIndex(filePath, ".")
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
	}
	ext := strings.ToLower(filePath[idx:])
	p, ok := r.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return p, nil
}

// CSVParser разбирает табличные файлы: первая строка — заголовки,
// остальные — записи.
type CSVParser struct {
	Separator rune
}

func (p *CSVParser) Parse(filePath string, data []byte) (*domain.ParsedDocument, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = p.Separator
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", filePath, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, filePath)
	}

	headers := rows[0]
	items := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		item := make(map[string]any, len(headers))
		for i, h := range headers {
			if i < len(row) {
				item[h] = row[i]
			} else {
				item[h] = ""
			}
		}
		items = append(items, item)
	}

	return &domain.ParsedDocument{
		FilePath: filePath,
		Headers:  headers,
		Items:    items,
		Status:   domain.StatusSuccess,
	}, nil
}

// JSONParser разбирает JSON-файлы: список записей либо объект
// с полями headers/items/metadata.
type JSONParser struct{}

func (p *JSONParser) Parse(filePath string, data []byte) (*domain.ParsedDocument, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse json %s: %w", filePath, err)
	}

	doc := &domain.ParsedDocument{
		FilePath: filePath,
		Status:   domain.StatusSuccess,
	}

	switch v := parsed.(type) {
	case []any:
		for _, item := range v {
			record, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("parse json %s: list item is not an object", filePath)
			}
			doc.Items = append(doc.Items, record)
		}
	case map[string]any:
		if err := fillFromObject(doc, v); err != nil {
			return nil, fmt.Errorf("parse json %s: %w", filePath, err)
		}
	default:
		return nil, fmt.Errorf("parse json %s: unexpected top-level value", filePath)
	}

	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, filePath)
	}
	if len(doc.Headers) == 0 {
		doc.Headers = headersFromItems(doc.Items)
	}
	return doc, nil
}

// fillFromObject заполняет документ из объектной формы JSON-файла.
// Неизвестные поля верхнего уровня складываются в Extra.
func fillFromObject(doc *domain.ParsedDocument, obj map[string]any) error {
	for key, val := range obj {
		switch key {
		case "headers":
			list, ok := val.([]any)
			if !ok {
				return fmt.Errorf("headers is not a list")
			}
			for _, h := range list {
				s, ok := h.(string)
				if !ok {
					return fmt.Errorf("header is not a string")
				}
				doc.Headers = append(doc.Headers, s)
			}
		case "items", "data":
			list, ok := val.([]any)
			if !ok {
				return fmt.Errorf("%s is not a list", key)
			}
			for _, item := range list {
				record, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("%s item is not an object", key)
				}
				doc.Items = append(doc.Items, record)
			}
		case "metadata":
			if m, ok := val.(map[string]any); ok {
				doc.Metadata = m
			}
		case "po_number":
			if s, ok := val.(string); ok {
				doc.PONumber = s
			}
		default:
			if doc.Extra == nil {
				doc.Extra = make(map[string]any)
			}
			doc.Extra[key] = val
		}
	}
	return nil
}

// headersFromItems восстанавливает заголовки из ключей записей.
func headersFromItems(items []map[string]any) []string {
	seen := make(map[string]bool)
	for _, item := range items {
		for key := range item {
			seen[key] = true
		}
	}
	headers := make([]string, 0, len(seen))
	for key := range seen {
		headers = append(headers, key)
	}
	sort.Strings(headers)
	return headers
}
