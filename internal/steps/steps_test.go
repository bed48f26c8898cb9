package steps

import (
	"errors"
	"testing"
)

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	// Пустой реестр
	if r.Count() != 0 {
		t.Errorf("expected empty registry")
	}

	// Регистрация
	err := r.Register("FILE_PARSE", Definition{
		FunctionName:      FuncParseFileToJSON,
		DataOutput:        "file_parse",
		RequireDataOutput: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 definition, got %d", r.Count())
	}

	// Получение
	def, err := r.Lookup("FILE_PARSE")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if def.FunctionName != FuncParseFileToJSON {
		t.Errorf("expected %s, got %s", FuncParseFileToJSON, def.FunctionName)
	}

	// Несуществующее имя
	_, err = r.Lookup("UNKNOWN")
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}

	// Has
	if !r.Has("FILE_PARSE") {
		t.Error("should have FILE_PARSE")
	}
	if r.Has("UNKNOWN") {
		t.Error("should not have UNKNOWN")
	}
}

func TestRegistry_InvalidDefinition(t *testing.T) {
	r := NewRegistry()

	// require_data_output без data_output — нарушение инварианта
	err := r.Register("BROKEN", Definition{
		FunctionName:      FuncValidateData,
		RequireDataOutput: true,
	})
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}

	// Пустое имя функции
	err = r.Register("BROKEN", Definition{})
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	expected := []string{
		"FILE_PARSE",
		"VALIDATE_HEADER",
		"VALIDATE_DATA",
		"MASTER_DATA_LOAD",
		"TEMPLATE_FORMAT_VALIDATION",
		"TEMPLATE_DATA_MAPPING",
		"TEMPLATE_PUBLISH_DATA",
		"[RULE_MP]_METADATA_EXTRACT",
		"[RULE_MP]_XSL_TRANSLATION",
		"[RULE_MP]_RENAME",
		"[RULE_MP]_SUBMIT",
		"[RULE_MP]_SEND_TO",
	}
	for _, name := range expected {
		if !r.Has(name) {
			t.Errorf("default registry should have %s", name)
		}
	}
	if r.Count() != len(expected) {
		t.Errorf("expected %d definitions, got %d", len(expected), r.Count())
	}

	// Каждое определение проходит собственную валидацию
	for _, name := range r.Names() {
		def, err := r.Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		if err := def.Validate(); err != nil {
			t.Errorf("definition %s is invalid: %v", name, err)
		}
	}
}

func TestDefinition_CloneKwargs(t *testing.T) {
	def := Definition{
		FunctionName: FuncPublishData,
		Kwargs:       map[string]any{"connectionDto": nil},
	}

	clone := def.CloneKwargs()
	clone["connectionDto"] = "filled"

	// Шаблон в определении не должен мутировать
	if def.Kwargs["connectionDto"] != nil {
		t.Error("kwargs template was mutated by clone")
	}
}

// Canonicalize Tests

func TestCanonicalize_Exact(t *testing.T) {
	names := DefaultRegistry().Names()

	got, ok := Canonicalize("FILE_PARSE", names)
	if !ok || got != "FILE_PARSE" {
		t.Errorf("expected FILE_PARSE, got %q (ok=%v)", got, ok)
	}
}

func TestCanonicalize_DynamicSuffix(t *testing.T) {
	names := DefaultRegistry().Names()

	cases := []struct {
		raw  string
		want string
	}{
		{"[RULE_MP]_SUBMIT", "[RULE_MP]_SUBMIT"},
		{"CUSTOMER_X_SUBMIT", "[RULE_MP]_SUBMIT"},
		{"ACME_RENAME", "[RULE_MP]_RENAME"},
		{"[CUSTOM]_SEND_TO", "[RULE_MP]_SEND_TO"},
	}
	for _, tc := range cases {
		got, ok := Canonicalize(tc.raw, names)
		if !ok || got != tc.want {
			t.Errorf("Canonicalize(%q) = %q (ok=%v), want %q", tc.raw, got, ok, tc.want)
		}
	}
}

func TestCanonicalize_NoMatch(t *testing.T) {
	names := DefaultRegistry().Names()

	if got, ok := Canonicalize("TOTALLY_UNKNOWN_STEP", names); ok {
		t.Errorf("expected no match, got %q", got)
	}
}

// Call Plan Tests

func TestPlanFor_ExactAndSubstring(t *testing.T) {
	// Точное имя
	plan := PlanFor("FILE_PARSE")
	if plan == nil || plan.Name != "FILE_PARSE" {
		t.Fatalf("expected FILE_PARSE plan, got %+v", plan)
	}
	if len(plan.Calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(plan.Calls))
	}

	// Динамическое имя матчится по подстроке
	plan = PlanFor("[RULE_MP]_SUBMIT")
	if plan == nil || plan.Name != "SUBMIT" {
		t.Fatalf("expected SUBMIT plan, got %+v", plan)
	}

	// Плана нет — валидный случай
	if plan := PlanFor("NO_SUCH_STEP"); plan != nil {
		t.Errorf("expected nil plan, got %+v", plan)
	}
}

func TestPlanFor_RequiredKeys(t *testing.T) {
	plan := PlanFor("TEMPLATE_FORMAT_VALIDATION")
	if plan == nil {
		t.Fatal("expected plan")
	}
	if len(plan.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(plan.Calls))
	}

	keys := plan.RequiredKeys()
	for _, name := range []string{"workflowStepId", "templateFileParseId"} {
		if _, ok := keys[name]; !ok {
			t.Errorf("required keys should contain %s", name)
		}
	}

	// RequiredKeys отдаёт свежую map на каждый вызов
	keys["workflowStepId"] = "filled"
	if !plan.RequiredKeys().Empty("workflowStepId") {
		t.Error("RequiredKeys must return a fresh map")
	}
}

func TestPlan_ExtractTemplateFileParseID(t *testing.T) {
	keys := Keys{"templateFileParseId": nil}

	resp := []any{
		map[string]any{
			"templateFileParse": map[string]any{"id": "tpl-1"},
		},
	}
	if err := extractTemplateFileParseID(resp, keys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if keys["templateFileParseId"] != "tpl-1" {
		t.Errorf("expected tpl-1, got %v", keys["templateFileParseId"])
	}

	// Пустой ответ — ErrExtract
	err := extractTemplateFileParseID([]any{}, keys)
	if !errors.Is(err, ErrExtract) {
		t.Errorf("expected ErrExtract, got %v", err)
	}
}

func TestKeys_Empty(t *testing.T) {
	keys := Keys{
		"a": nil,
		"b": "",
		"c": "value",
		"d": 0,
	}

	if !keys.Empty("a") || !keys.Empty("b") || !keys.Empty("missing") {
		t.Error("nil, empty string and missing keys must be empty")
	}
	if keys.Empty("c") || keys.Empty("d") {
		t.Error("filled keys must not be empty")
	}
}
