package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formaworks/forma-api/internal/cache"
	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/provider"
	"github.com/formaworks/forma-api/internal/service"
	"github.com/formaworks/forma-api/internal/storage"
	"github.com/formaworks/forma-api/internal/task"
)

// scriptedProvider produces a fixed payload or a fixed error.
type scriptedProvider struct {
	registry *task.Registry
	store    storage.Backend
	payload  []byte
	err      error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Produce(ctx context.Context, taskID uuid.UUID, req domain.GenerateRequest) (*domain.GenerationResult, error) {
	p.registry.MarkProcessing(taskID, 10)
	if p.err != nil {
		return nil, p.err
	}
	ref, err := p.store.Save(ctx, taskID, p.payload, domain.ArtifactModel, req.OutputFormat)
	if err != nil {
		return nil, err
	}
	return &domain.GenerationResult{
		TaskID:       taskID,
		ModelRef:     ref,
		FileFormat:   req.OutputFormat,
		FileSize:     int64(len(p.payload)),
		Downloadable: true,
		Provider:     p.Name(),
	}, nil
}

type handlerFixture struct {
	svc     *service.GenerationService
	router  chi.Router
	stub    *scriptedProvider
	handler *GenerationHandler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	registry := task.NewRegistry(nil)
	backend, err := storage.NewLocalBackend(t.TempDir(), nil)
	require.NoError(t, err)

	stub := &scriptedProvider{registry: registry, store: backend, payload: []byte("o cube\n")}
	selector := provider.NewSelector("scripted")
	selector.Register(stub)

	resultCache := cache.New(nil, time.Hour, 100, nil)
	svc := service.NewGenerationService(registry, resultCache, selector, backend, nil)
	handler := NewGenerationHandler(svc, nil)

	r := chi.NewRouter()
	r.Post("/api/generate", handler.Generate)
	r.Get("/api/generate/status/{taskID}", handler.Status)
	r.Get("/api/generate/download/{taskID}", handler.Download)
	r.Delete("/api/generate/{taskID}", handler.Cancel)
	r.Get("/health", handler.Health)

	return &handlerFixture{svc: svc, router: r, stub: stub, handler: handler}
}

func (f *handlerFixture) submit(t *testing.T, body string) GenerateResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Contains(t, []int{http.StatusOK, http.StatusAccepted}, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// waitTerminal polls until the task reaches a terminal state.
func (f *handlerFixture) waitTerminal(t *testing.T, taskID uuid.UUID) domain.Task {
	t.Helper()

	var tk domain.Task
	require.Eventually(t, func() bool {
		var err error
		tk, err = f.svc.GetStatus(taskID)
		return err == nil && tk.Status.IsTerminal()
	}, 5*time.Second, time.Millisecond)
	return tk
}

func TestGenerateAccepted(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	resp := f.submit(t, `{"prompt": "a wooden chair"}`)

	assert.Equal(t, domain.TaskStatusPending, resp.Status)
	assert.False(t, resp.Cached)
	assert.NotEqual(t, uuid.Nil, resp.TaskID)
	require.NotNil(t, resp.EstimatedCompletion)

	tk := f.waitTerminal(t, resp.TaskID)
	assert.Equal(t, domain.TaskStatusCompleted, tk.Status)
}

func TestGenerateCacheHit(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	first := f.submit(t, `{"prompt": "a wooden chair"}`)
	f.waitTerminal(t, first.TaskID)

	second := f.submit(t, `{"prompt": "a wooden chair"}`)
	assert.True(t, second.Cached)
	assert.Equal(t, first.TaskID, second.TaskID)
	require.NotNil(t, second.Result)
	assert.NotEmpty(t, second.Result.ModelRef)
}

func TestGenerateRejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"prompt": `},
		{name: "empty prompt", body: `{"prompt": "   "}`},
		{name: "bad format", body: `{"prompt": "a chair", "output_format": "dwg"}`},
		{name: "bad resolution", body: `{"prompt": "a chair", "resolution": 64}`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGenerateUnknownProvider(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/generate",
		bytes.NewBufferString(`{"prompt": "a chair", "provider": "nope"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown provider")
}

func TestStatusLifecycle(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	resp := f.submit(t, `{"prompt": "a wooden chair"}`)
	f.waitTerminal(t, resp.TaskID)

	req := httptest.NewRequest(http.MethodGet, "/api/generate/status/"+resp.TaskID.String(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status TaskStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, domain.TaskStatusCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Result)
	assert.NotNil(t, status.CompletedAt)
	assert.Nil(t, status.EstimatedCompletion)
}

func TestStatusErrors(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/generate/status/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/generate/status/"+uuid.New().String(), nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadArtifact(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	resp := f.submit(t, `{"prompt": "a wooden chair"}`)
	f.waitTerminal(t, resp.TaskID)

	req := httptest.NewRequest(http.MethodGet, "/api/generate/download/"+resp.TaskID.String(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "o cube\n", rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".obj")
}

func TestDownloadNotReady(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/generate/download/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelFinishedTask(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	resp := f.submit(t, `{"prompt": "a wooden chair"}`)
	f.waitTerminal(t, resp.TaskID)

	req := httptest.NewRequest(http.MethodDelete, "/api/generate/"+resp.TaskID.String(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var cancel CancelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancel))
	assert.False(t, cancel.Cancelled)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
}
