package processors

import (
	"errors"
	"testing"
)

func TestParserRegistry_ForFile(t *testing.T) {
	r := NewParserRegistry()

	for _, path := range []string{"/in/a.csv", "/in/b.CSV", "/in/c.json", "/in/d.txt"} {
		if _, err := r.ForFile(path); err != nil {
			t.Errorf("expected parser for %s, got %v", path, err)
		}
	}

	_, err := r.ForFile("/in/a.xlsx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	_, err = r.ForFile("/in/noext")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestCSVParser(t *testing.T) {
	p := &CSVParser{Separator: ','}

	data := []byte("sku,qty\nA-1,10\nA-2,20\n")
	doc, err := p.Parse("/in/items.csv", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Headers) != 2 || doc.Headers[0] != "sku" {
		t.Errorf("unexpected headers: %v", doc.Headers)
	}
	if len(doc.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(doc.Items))
	}
	if doc.Items[1]["qty"] != "20" {
		t.Errorf("expected qty=20, got %v", doc.Items[1]["qty"])
	}
}

func TestCSVParser_ShortRow(t *testing.T) {
	p := &CSVParser{Separator: ';'}

	// Заголовок без записей — ошибка
	_, err := p.Parse("/in/empty.txt", []byte("sku;qty\n"))
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
}

func TestJSONParser_List(t *testing.T) {
	p := &JSONParser{}

	data := []byte(`[{"sku":"A-1","qty":1},{"sku":"A-2","qty":2}]`)
	doc, err := p.Parse("/in/items.json", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(doc.Items))
	}
	// Заголовки восстановлены из ключей записей
	if len(doc.Headers) != 2 {
		t.Errorf("expected 2 headers, got %v", doc.Headers)
	}
}

func TestJSONParser_ObjectWithExtra(t *testing.T) {
	p := &JSONParser{}

	data := []byte(`{
		"headers": ["sku"],
		"items": [{"sku": "A-1"}],
		"po_number": "PO-42",
		"unexpected": true
	}`)
	doc, err := p.Parse("/in/order.json", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.PONumber != "PO-42" {
		t.Errorf("expected PO-42, got %s", doc.PONumber)
	}
	// Неизвестные поля не теряются
	if doc.Extra["unexpected"] != true {
		t.Errorf("unknown fields must land in Extra, got %v", doc.Extra)
	}
}

func TestJSONParser_Invalid(t *testing.T) {
	p := &JSONParser{}

	if _, err := p.Parse("/in/bad.json", []byte(`"just a string"`)); err == nil {
		t.Error("expected error for non-document json")
	}
	if _, err := p.Parse("/in/bad.json", []byte(`{invalid`)); err == nil {
		t.Error("expected error for malformed json")
	}
}
