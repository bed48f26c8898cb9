package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/telemetry"
)

const defaultTimeout = 30 * time.Second

// Ошибки backend-коннектора.
var (
	// ErrRequest — запрос не удалось выполнить (сеть, сериализация).
	ErrRequest = errors.New("backend request failed")

	// ErrDecode — ответ backend-а не разобрался как JSON.
	ErrDecode = errors.New("backend response decode failed")
)

// APIError — ответ backend-а с кодом >= 400.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: HTTP %d: %s", e.Path, e.StatusCode, e.Body)
}

// Config — конфигурация коннектора.
type Config struct {
	// BaseURL — база backend API (схема + хост + порт).
	BaseURL string

	// Token — значение заголовка X-Token.
	Token string

	// Timeout — таймаут одного запроса. 0 — default 30s.
	Timeout time.Duration

	// Client — HTTP-клиент. nil — собственный клиент с таймаутом.
	Client *http.Client
}

// ConfigFromEnv собирает конфигурацию из окружения:
// BACKEND_HOST, BACKEND_PORT, BACKEND_TOKEN, ENVIRONMENT
// (environment "local" даёт http, иначе https).
func ConfigFromEnv() Config {
	host := os.Getenv("BACKEND_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("BACKEND_PORT")
	if port == "" {
		port = "8080"
	}
	scheme := "https"
	if os.Getenv("ENVIRONMENT") == "local" {
		scheme = "http"
	}
	return Config{
		BaseURL: fmt.Sprintf("%s://%s:%s", scheme, host, port),
		Token:   os.Getenv("BACKEND_TOKEN"),
	}
}

// Connector — клиент backend API.
//
// Все ответы backend-а приходят в конверте {"data": ...}; коннектор
// снимает конверт и возвращает содержимое. Авторизация — заголовком
// X-Token на каждом запросе.
type Connector struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewConnector создаёт коннектор.
func NewConnector(cfg Config) *Connector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Connector{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  client,
	}
}

// Call выполняет запрос к backend-у и возвращает содержимое конверта.
//
// method — "get"/"post" (регистр не важен); params — query-параметры;
// body — тело запроса (сериализуется в JSON, nil — без тела).
func (c *Connector) Call(ctx context.Context, method, path string, params map[string]any, body any) (any, error) {
	log := telemetry.FromContext(ctx)

	reqURL := c.baseURL + path
	if len(params) > 0 {
		q := url.Values{}
		for key, val := range params {
			q.Set(key, fmt.Sprintf("%v", val))
		}
		reqURL += "?" + q.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal body: %v", ErrRequest, err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-Token", c.token)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequest, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRequest, err)
	}

	if resp.StatusCode >= 400 {
		log.Warn("backend call failed",
			"path", path,
			"status", resp.StatusCode)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Path:       path,
			Body:       truncate(string(respBody), 200),
		}
	}

	return unwrap(respBody, path)
}

// unwrap снимает конверт {"data": ...} с ответа.
// Ответ без конверта возвращается как есть.
func unwrap(body []byte, path string) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	if envelope, ok := parsed.(map[string]any); ok {
		if data, ok := envelope["data"]; ok {
			return data, nil
		}
	}
	return parsed, nil
}

// FilterWorkflows подбирает workflow по метаданным файла.
func (c *Connector) FilterWorkflows(ctx context.Context, tracking *domain.Tracking, file domain.FileRecord) ([]domain.Workflow, error) {
	params := map[string]any{
		"projectName":  tracking.ProjectName,
		"sourceType":   tracking.SourceName,
		"documentType": file.DocumentType(),
		"fileName":     file.String("file_name"),
	}
	if tracking.WorkflowID != "" {
		params["workflowId"] = tracking.WorkflowID
	}

	raw, err := c.Call(ctx, "get", PathWorkflowFilter, params, nil)
	if err != nil {
		return nil, err
	}
	return decodeAs[[]domain.Workflow](raw, PathWorkflowFilter)
}

// SessionStart открывает сессию обработки и возвращает её идентификатор.
func (c *Connector) SessionStart(ctx context.Context, tracking *domain.Tracking, workflow domain.Workflow) (*domain.WorkflowSession, error) {
	body := map[string]any{
		"requestId":  tracking.RequestID,
		"workflowId": workflow.ID,
		"filePath":   tracking.FilePath,
	}
	raw, err := c.Call(ctx, "post", PathSessionStart, nil, body)
	if err != nil {
		return nil, err
	}
	session, err := decodeAs[domain.WorkflowSession](raw, PathSessionStart)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionFinish закрывает сессию обработки с итоговым статусом.
func (c *Connector) SessionFinish(ctx context.Context, session *domain.WorkflowSession, status domain.StepStatus) error {
	body := map[string]any{
		"sessionId": session.ID,
		"status":    string(status),
	}
	_, err := c.Call(ctx, "post", PathSessionFinish, nil, body)
	return err
}

// StepStart отмечает старт шага и возвращает запись истории.
func (c *Connector) StepStart(ctx context.Context, session *domain.WorkflowSession, step domain.WorkflowStep) (*domain.StartedStep, error) {
	body := map[string]any{
		"sessionId":      session.ID,
		"workflowStepId": step.WorkflowStepID,
		"stepOrder":      step.StepOrder,
	}
	raw, err := c.Call(ctx, "post", PathStepStart, nil, body)
	if err != nil {
		return nil, err
	}
	started, err := decodeAs[domain.StartedStep](raw, PathStepStart)
	if err != nil {
		return nil, err
	}
	return &started, nil
}

// StepFinish отмечает завершение шага.
func (c *Connector) StepFinish(ctx context.Context, started *domain.StartedStep, output *domain.StepOutput) error {
	body := map[string]any{
		"workflowHistoryId": started.WorkflowHistoryID,
		"status":            string(output.Status),
		"messages":          output.FailureMessages,
	}
	_, err := c.Call(ctx, "post", PathStepFinish, nil, body)
	return err
}

// decodeAs перегоняет распакованный ответ в типизированную структуру.
func decodeAs[T any](raw any, path string) (T, error) {
	var out T
	buf, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	if err := json.Unmarshal(buf, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return out, nil
}

// truncate обрезает строку для сообщения об ошибке.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
