package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Docuflow/internal/domain"
)

func newTestConnector(handler http.HandlerFunc) (*Connector, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewConnector(Config{BaseURL: srv.URL, Token: "secret"})
	return c, srv
}

func TestCall_EnvelopeAndHeaders(t *testing.T) {
	var gotToken, gotAccept string
	c, srv := newTestConnector(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Token")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"data": {"id": "wf-1"}}`))
	})
	defer srv.Close()

	raw, err := c.Call(context.Background(), "get", "/api/workflow/filter", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotToken != "secret" {
		t.Errorf("expected X-Token header, got %q", gotToken)
	}
	if gotAccept != "application/json" {
		t.Errorf("expected Accept header, got %q", gotAccept)
	}

	// Конверт {"data": ...} должен быть снят
	data, ok := raw.(map[string]any)
	if !ok || data["id"] != "wf-1" {
		t.Errorf("expected unwrapped payload, got %v", raw)
	}
}

func TestCall_NoEnvelope(t *testing.T) {
	c, srv := newTestConnector(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"id": "wf-1"}]`))
	})
	defer srv.Close()

	raw, err := c.Call(context.Background(), "get", "/x", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := raw.([]any)
	if !ok || len(list) != 1 {
		t.Errorf("expected list response as-is, got %v", raw)
	}
}

func TestCall_QueryParamsAndBody(t *testing.T) {
	var gotQuery, gotContentType string
	var gotBody map[string]any
	c, srv := newTestConnector(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("fileName")
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"data": true}`))
	})
	defer srv.Close()

	params := map[string]any{"fileName": "orders.csv"}
	body := map[string]any{"workflowId": "wf-1"}
	if _, err := c.Call(context.Background(), "post", "/x", params, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery != "orders.csv" {
		t.Errorf("expected query param, got %q", gotQuery)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected json content type, got %q", gotContentType)
	}
	if gotBody["workflowId"] != "wf-1" {
		t.Errorf("unexpected body: %v", gotBody)
	}
}

func TestCall_APIError(t *testing.T) {
	c, srv := newTestConnector(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": "bad filter"}`))
	})
	defer srv.Close()

	_, err := c.Call(context.Background(), "get", "/api/workflow/filter", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", apiErr.StatusCode)
	}
	if apiErr.Path != "/api/workflow/filter" {
		t.Errorf("unexpected path: %s", apiErr.Path)
	}
}

func TestCall_BadJSON(t *testing.T) {
	c, srv := newTestConnector(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{broken`))
	})
	defer srv.Close()

	_, err := c.Call(context.Background(), "get", "/x", nil, nil)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestCall_EmptyBody(t *testing.T) {
	c, srv := newTestConnector(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	raw, err := c.Call(context.Background(), "post", "/x", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != nil {
		t.Errorf("expected nil for empty body, got %v", raw)
	}
}

func TestFilterWorkflows(t *testing.T) {
	var gotParams map[string]string
	c, srv := newTestConnector(func(w http.ResponseWriter, r *http.Request) {
		gotParams = map[string]string{
			"projectName":  r.URL.Query().Get("projectName"),
			"sourceType":   r.URL.Query().Get("sourceType"),
			"documentType": r.URL.Query().Get("documentType"),
			"fileName":     r.URL.Query().Get("fileName"),
		}
		w.Write([]byte(`{"data": [{"id": "wf-1", "name": "Orders Inbound"}]}`))
	})
	defer srv.Close()

	tracking := &domain.Tracking{ProjectName: "acme", SourceName: "sftp"}
	file := domain.FileRecord{
		"file_name":     "orders.csv",
		"document_type": domain.DocumentTypeOrder,
	}

	workflows, err := c.FilterWorkflows(context.Background(), tracking, file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(workflows) != 1 || workflows[0].ID != "wf-1" {
		t.Fatalf("unexpected workflows: %+v", workflows)
	}
	if gotParams["projectName"] != "acme" || gotParams["sourceType"] != "sftp" ||
		gotParams["fileName"] != "orders.csv" || gotParams["documentType"] == "" {
		t.Errorf("unexpected filter params: %v", gotParams)
	}
}

func TestSessionLifecycle(t *testing.T) {
	c, srv := newTestConnector(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathSessionStart:
			w.Write([]byte(`{"data": {"id": "sess-1"}}`))
		case PathStepStart:
			w.Write([]byte(`{"data": {"workflowHistoryId": "hist-1"}}`))
		default:
			w.Write([]byte(`{"data": true}`))
		}
	})
	defer srv.Close()

	ctx := context.Background()
	tracking := &domain.Tracking{RequestID: "req-1", FilePath: "/in/orders.csv"}

	session, err := c.SessionStart(ctx, tracking, domain.Workflow{ID: "wf-1"})
	if err != nil {
		t.Fatalf("session start: %v", err)
	}
	if session.ID != "sess-1" {
		t.Errorf("unexpected session: %+v", session)
	}

	started, err := c.StepStart(ctx, session, domain.WorkflowStep{WorkflowStepID: "ws-1", StepOrder: 1})
	if err != nil {
		t.Fatalf("step start: %v", err)
	}
	if started.WorkflowHistoryID != "hist-1" {
		t.Errorf("unexpected started step: %+v", started)
	}

	out := domain.NewSuccessOutput(nil, nil)
	if err := c.StepFinish(ctx, started, out); err != nil {
		t.Errorf("step finish: %v", err)
	}
	if err := c.SessionFinish(ctx, session, domain.StatusSuccess); err != nil {
		t.Errorf("session finish: %v", err)
	}
}
