package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shaiso/Docuflow/internal/domain"
)

// fakeS3 — in-memory реализация S3API.
type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func objKey(bucket, key string) string {
	return bucket + "/" + key
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[objKey(*params.Bucket, *params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[objKey(*params.Bucket, *params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := objKey(*params.Bucket, aws.ToString(params.Prefix))
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, strings.TrimPrefix(key, *params.Bucket+"/"))
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	src := aws.ToString(params.CopySource)
	data, ok := f.objects[src]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	f.objects[objKey(*params.Bucket, *params.Key)] = data
	return &s3.CopyObjectOutput{}, nil
}

// Key Naming Tests

func TestFileStem(t *testing.T) {
	cases := map[string]string{
		"/inbound/orders.csv":   "orders",
		"orders.csv":            "orders",
		"/a/b/report.final.csv": "report.final",
		"noext":                 "noext",
	}
	for path, want := range cases {
		if got := FileStem(path); got != want {
			t.Errorf("FileStem(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestResultKey(t *testing.T) {
	date := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	key := ResultKey("workflow-node-materialized", date, 1, "FILE_PARSE", "/in/orders.csv", 0)
	want := "workflow-node-materialized/2026-08-31/01_FILE_PARSE/orders.json"
	if key != want {
		t.Errorf("got %q, want %q", key, want)
	}

	key = ResultKey("workflow-node-materialized", date, 1, "FILE_PARSE", "/in/orders.csv", 2)
	want = "workflow-node-materialized/2026-08-31/01_FILE_PARSE/orders_rerun_2.json"
	if key != want {
		t.Errorf("got %q, want %q", key, want)
	}
}

func TestSelectLatestResult(t *testing.T) {
	keys := []string{
		"f/2026-08-30/01_FILE_PARSE/orders.json",
		"f/2026-08-30/01_FILE_PARSE/orders_rerun_1.json",
		"f/2026-08-30/01_FILE_PARSE/orders_rerun_3.json",
		"f/2026-08-30/01_FILE_PARSE/other.json",
	}

	// Без ограничения — побеждает максимальный rerun
	key, ok := SelectLatestResult(keys, "/in/orders.csv", 0)
	if !ok || !strings.HasSuffix(key, "orders_rerun_3.json") {
		t.Errorf("expected rerun_3, got %q (ok=%v)", key, ok)
	}

	// Попытка 2 видит только попытки строго меньше 2
	key, ok = SelectLatestResult(keys, "/in/orders.csv", 2)
	if !ok || !strings.HasSuffix(key, "orders_rerun_1.json") {
		t.Errorf("expected rerun_1, got %q (ok=%v)", key, ok)
	}

	// Чужой файл не матчится
	if _, ok := SelectLatestResult(keys, "/in/missing.csv", 0); ok {
		t.Error("expected no match for unknown file")
	}
}

// Result Store Tests

func TestResultStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewStorage(newFakeS3())
	results := NewResultStore(store, "docuflow-data")

	tracking := &domain.Tracking{RequestID: "req-1", FilePath: "/in/orders.csv"}
	step := &domain.WorkflowStep{WorkflowStepID: "ws-1", StepName: "FILE_PARSE", StepOrder: 1}
	out := domain.NewSuccessOutput(map[string]any{"rows": float64(3)}, nil)

	key, err := results.SaveStepResult(ctx, tracking, step, "workflow-node-materialized", out)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if key == "" {
		t.Fatal("expected a result key")
	}

	// Гидрация rerun-а читает сохранённый результат
	rerun := &domain.Tracking{RequestID: "req-1", FilePath: "/in/orders.csv", RerunAttempt: 1, RerunStepID: "ws-2"}
	loaded, err := results.LoadStepResult(ctx, rerun, step, "workflow-node-materialized")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Status != domain.StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", loaded.Status.Name())
	}
	data, ok := loaded.Data.(map[string]any)
	if !ok || data["rows"] != float64(3) {
		t.Errorf("unexpected data: %v", loaded.Data)
	}
}

func TestResultStore_LoadMissing(t *testing.T) {
	results := NewResultStore(NewStorage(newFakeS3()), "docuflow-data")

	tracking := &domain.Tracking{RequestID: "req-1", FilePath: "/in/orders.csv"}
	step := &domain.WorkflowStep{StepName: "FILE_PARSE", StepOrder: 1}

	// Отсутствие результата — не ошибка: (nil, nil)
	out, err := results.LoadStepResult(context.Background(), tracking, step, "workflow-node-materialized")
	if err != nil {
		t.Fatalf("missing result must not be an error, got %v", err)
	}
	if out != nil {
		t.Errorf("expected nil output, got %+v", out)
	}
}

func TestStorage_WriteReadJSON(t *testing.T) {
	ctx := context.Background()
	store := NewStorage(newFakeS3())

	in := map[string]any{"a": "b"}
	if err := store.WriteJSON(ctx, "bucket", "dir/x.json", in); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out map[string]any
	if err := store.ReadJSON(ctx, "bucket", "dir/x.json", &out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out["a"] != "b" {
		t.Errorf("unexpected value: %v", out)
	}

	keys, err := store.List(ctx, "bucket", "dir/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0] != "dir/x.json" {
		t.Errorf("unexpected keys: %v", keys)
	}
}
