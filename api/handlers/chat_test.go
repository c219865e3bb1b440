package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-chat/api/handlers"
	"github.com/feichai0017/document-chat/api/middleware"
	"github.com/feichai0017/document-chat/api/routes"
	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/internal/service/chat"
	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/queue"
)

type stubService struct {
	got    *chat.ChatRequest
	body   string
	err    error
	answer string
}

func (s *stubService) Chat(ctx context.Context, req *chat.ChatRequest) (*chat.ChatResponse, error) {
	s.got = req
	if req.Upload != nil {
		data, _ := io.ReadAll(req.Upload.File)
		s.body = string(data)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &chat.ChatResponse{Answer: s.answer}, nil
}

func (s *stubService) HandleCleanup(ctx context.Context, p *queue.CleanupPayload) error { return nil }

func newRouter(svc chat.ChatProcessor, ready bool, log logger.Logger) *gin.Engine {
	return newRouterWithBacklog(svc, ready, nil, log)
}

func newRouterWithBacklog(svc chat.ChatProcessor, ready bool, backlog handlers.BacklogFunc, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewHandlers(svc, func() bool { return ready }, backlog, log)
	routes.SetupRoutes(r, h, &config.ServerConfig{MaxUploadBytes: 1 << 20}, log)
	return r
}

func multipartRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/chat/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRoot(t *testing.T) {
	r := newRouter(&stubService{}, true, logger.NewTestLogger())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"message": handlers.RootMessage}, decode(t, rec))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestChat_QueryOnly(t *testing.T) {
	svc := &stubService{answer: "42"}
	r := newRouter(svc, true, logger.NewTestLogger())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, map[string]string{"query": "meaning?"}, "", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"answer": "42"}, decode(t, rec))
	require.NotNil(t, svc.got)
	assert.Equal(t, "meaning?", svc.got.Question)
	assert.Nil(t, svc.got.Upload)
}

func TestChat_WithFile(t *testing.T) {
	svc := &stubService{answer: "ok"}
	r := newRouter(svc, true, logger.NewTestLogger())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, map[string]string{"query": "sum?"}, "notes.txt", "hello"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.got.Upload)
	assert.Equal(t, "notes.txt", svc.got.Upload.Filename)
	assert.Equal(t, int64(5), svc.got.Upload.Size)
	assert.Equal(t, "hello", svc.body)
}

func TestChat_MissingQuery(t *testing.T) {
	svc := &stubService{}
	log := logger.NewTestLogger()
	r := newRouter(svc, true, log)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, map[string]string{}, "notes.txt", "hello"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": "failed to process chat request"}, decode(t, rec))
	assert.Nil(t, svc.got)
	assert.True(t, log.Has("ERROR", "Chat error"))
}

func TestChat_ErrorsAreGeneric(t *testing.T) {
	svc := &stubService{err: &models.PipelineError{
		Stage: "extract",
		Err:   errors.New("tesseract: /tmp/secret/path.png unreadable"),
	}}
	r := newRouter(svc, true, logger.NewTestLogger())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, map[string]string{"query": "q"}, "a.png", "x"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "failed to process chat request", body["error"])
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestChat_UnsupportedFormatMessage(t *testing.T) {
	svc := &stubService{err: &models.PipelineError{
		Stage: "extract",
		Err:   fmt.Errorf("report.docx: %w", models.ErrUnsupportedFormat),
	}}
	r := newRouter(svc, true, logger.NewTestLogger())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, map[string]string{"query": "q"}, "report.docx", "PK"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unsupported file format", decode(t, rec)["error"])
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&stubService{}, false, logger.NewTestLogger()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(&stubService{}, true, logger.NewTestLogger()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "cleanupQueue")
}

func TestHealthReportsCleanupBacklog(t *testing.T) {
	backlog := func() (*queue.Backlog, error) {
		return &queue.Backlog{Pending: 2, Archived: 1}, nil
	}
	rec := httptest.NewRecorder()
	newRouterWithBacklog(&stubService{}, true, backlog, logger.NewTestLogger()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status       string        `json:"status"`
		CleanupQueue queue.Backlog `json:"cleanupQueue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, queue.Backlog{Pending: 2, Archived: 1}, body.CleanupQueue)

	unavailable := func() (*queue.Backlog, error) { return nil, errors.New("redis down") }
	rec = httptest.NewRecorder()
	newRouterWithBacklog(&stubService{}, true, unavailable, logger.NewTestLogger()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cleanupQueue":"unavailable"`)
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := newRouter(&stubService{}, true, logger.NewTestLogger())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(middleware.RequestIDHeader))
}
