package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"gemini-rag-be/internal/dto"
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/pkg/serverutils"
	"gemini-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDocumentService struct {
	indexed      *dto.IndexDocumentRequest
	uploadExists bool
	deletedId    string
	deleteErr    error
}

func (s *stubDocumentService) Index(ctx context.Context, req *dto.IndexDocumentRequest) (*dto.DocumentView, error) {
	s.indexed = req
	_, err := os.Stat(req.FilePath)
	s.uploadExists = err == nil
	return &dto.DocumentView{LocalId: "l1", DisplayName: req.OriginalName, State: "ACTIVE"}, nil
}

func (s *stubDocumentService) List(ctx context.Context) (*dto.ListDocumentsResponse, error) {
	return &dto.ListDocumentsResponse{Documents: []dto.DocumentView{{LocalId: "l1"}}, Degraded: true}, nil
}

func (s *stubDocumentService) Delete(ctx context.Context, id string) (*dto.DeleteDocumentResponse, error) {
	s.deletedId = id
	if s.deleteErr != nil {
		return nil, s.deleteErr
	}
	return &dto.DeleteDocumentResponse{RemoteStatus: "deleted"}, nil
}

func (s *stubDocumentService) DeleteAll(ctx context.Context) (*dto.DeleteAllDocumentsResponse, error) {
	return &dto.DeleteAllDocumentsResponse{GeminiDeleted: 2, GeminiFailed: 1, LocalCleared: 3}, nil
}

func (s *stubDocumentService) StoreInfo(ctx context.Context) (*dto.StoreInfoResponse, error) {
	return &dto.StoreInfoResponse{StoreName: "fileSearchStores/s", DocumentsCount: 1}, nil
}

func (s *stubDocumentService) Backfill(ctx context.Context) (int, error) { return 0, nil }

type stubSearchService struct{ req *dto.SearchRequest }

func (s *stubSearchService) Search(ctx context.Context, req *dto.SearchRequest) (*dto.SearchResponse, error) {
	s.req = req
	return &dto.SearchResponse{Text: "answer", SessionId: "generated"}, nil
}

type stubSessionService struct {
	service.ISessionService
	cleared string
}

func (s *stubSessionService) History(ctx context.Context, id string) (*dto.SessionHistoryResponse, error) {
	return &dto.SessionHistoryResponse{SessionId: id, History: []entity.Turn{{Role: entity.TurnRoleUser, Content: "hi"}}}, nil
}

func (s *stubSessionService) Clear(ctx context.Context, id string) error {
	s.cleared = id
	return nil
}

func (s *stubSessionService) Stats(ctx context.Context) (entity.SessionStats, error) {
	return entity.SessionStats{TotalSessions: 3, ActiveSessions: 2}, nil
}

type testApp struct {
	app       *fiber.App
	documents *stubDocumentService
	search    *stubSearchService
	sessions  *stubSessionService
	uploadDir string
}

func newTestApp(t *testing.T, guard fiber.Handler) *testApp {
	t.Helper()
	ta := &testApp{
		documents: &stubDocumentService{},
		search:    &stubSearchService{},
		sessions:  &stubSessionService{},
		uploadDir: t.TempDir(),
	}

	log := logger.NewNopLogger()
	ta.app = fiber.New(fiber.Config{ErrorHandler: serverutils.NewErrorHandler(log)})
	api := ta.app.Group("/api")
	NewDocumentController(ta.documents, ta.uploadDir, guard, log).RegisterRoutes(api)
	NewSearchController(ta.search).RegisterRoutes(api)
	NewSessionController(ta.sessions).RegisterRoutes(api)
	NewHealthController(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "localhost", "1.0.0").RegisterRoutes(ta.app)
	return ta
}

func decode[T any](t *testing.T, body io.Reader) serverutils.BaseResponse[T] {
	t.Helper()
	var res serverutils.BaseResponse[T]
	require.NoError(t, json.NewDecoder(body).Decode(&res))
	return res
}

func passThrough(ctx *fiber.Ctx) error { return ctx.Next() }

func TestDocumentController_IndexSavesAndRemovesUpload(t *testing.T) {
	ta := newTestApp(t, passThrough)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "intro.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, w.WriteField("metadata", `{"book":"physics"}`))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/index", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body := decode[dto.DocumentView](t, resp.Body)
	assert.True(t, body.Success)
	assert.Equal(t, "intro.pdf", body.Data.DisplayName)

	indexed := ta.documents.indexed
	require.NotNil(t, indexed)
	assert.Equal(t, "intro.pdf", indexed.OriginalName)
	assert.Equal(t, `{"book":"physics"}`, indexed.Metadata)
	assert.EqualValues(t, len("%PDF-1.4 test"), indexed.SizeBytes)
	assert.True(t, strings.HasSuffix(indexed.FilePath, "-intro.pdf"))
	assert.True(t, ta.documents.uploadExists)

	_, err = os.Stat(indexed.FilePath)
	assert.True(t, os.IsNotExist(err))
}

func TestDocumentController_IndexWithoutFile(t *testing.T) {
	ta := newTestApp(t, passThrough)

	resp, err := ta.app.Test(httptest.NewRequest("POST", "/api/index", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Nil(t, ta.documents.indexed)
}

func TestDocumentController_ListAndStore(t *testing.T) {
	ta := newTestApp(t, passThrough)

	resp, err := ta.app.Test(httptest.NewRequest("GET", "/api/documents", nil), -1)
	require.NoError(t, err)
	list := decode[dto.ListDocumentsResponse](t, resp.Body)
	assert.True(t, list.Data.Degraded)
	assert.Len(t, list.Data.Documents, 1)

	resp, err = ta.app.Test(httptest.NewRequest("GET", "/api/store", nil), -1)
	require.NoError(t, err)
	store := decode[dto.StoreInfoResponse](t, resp.Body)
	assert.Equal(t, "fileSearchStores/s", store.Data.StoreName)
}

func TestDocumentController_DeleteRoutes(t *testing.T) {
	ta := newTestApp(t, passThrough)

	resp, err := ta.app.Test(httptest.NewRequest("DELETE", "/api/documents/fileSearchStores/s/documents/d1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "fileSearchStores/s/documents/d1", ta.documents.deletedId)

	resp, err = ta.app.Test(httptest.NewRequest("DELETE", "/api/documents", nil), -1)
	require.NoError(t, err)
	all := decode[dto.DeleteAllDocumentsResponse](t, resp.Body)
	assert.Equal(t, dto.DeleteAllDocumentsResponse{GeminiDeleted: 2, GeminiFailed: 1, LocalCleared: 3}, all.Data)

	ta.documents.deleteErr = service.ErrDocumentNotFound
	resp, err = ta.app.Test(httptest.NewRequest("DELETE", "/api/documents/unknown", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	errBody := decode[any](t, resp.Body)
	assert.False(t, errBody.Success)
}

func TestDocumentController_DeleteIsGuarded(t *testing.T) {
	ta := newTestApp(t, serverutils.NewJwtMiddleware("secret"))

	resp, err := ta.app.Test(httptest.NewRequest("DELETE", "/api/documents/l1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Empty(t, ta.documents.deletedId)

	resp, err = ta.app.Test(httptest.NewRequest("GET", "/api/documents", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSearchController(t *testing.T) {
	ta := newTestApp(t, passThrough)

	req := httptest.NewRequest("POST", "/api/search", strings.NewReader(`{"query":"What is light?","sessionId":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "s1", ta.search.req.SessionId)

	body := decode[dto.SearchResponse](t, resp.Body)
	assert.Equal(t, "answer", body.Data.Text)

	req = httptest.NewRequest("POST", "/api/search", strings.NewReader(`{"sessionId":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestSessionController(t *testing.T) {
	ta := newTestApp(t, passThrough)

	resp, err := ta.app.Test(httptest.NewRequest("GET", "/api/sessions/stats", nil), -1)
	require.NoError(t, err)
	stats := decode[entity.SessionStats](t, resp.Body)
	assert.Equal(t, entity.SessionStats{TotalSessions: 3, ActiveSessions: 2}, stats.Data)

	resp, err = ta.app.Test(httptest.NewRequest("GET", "/api/sessions/s1/history", nil), -1)
	require.NoError(t, err)
	history := decode[dto.SessionHistoryResponse](t, resp.Body)
	assert.Equal(t, "s1", history.Data.SessionId)
	assert.Len(t, history.Data.History, 1)

	resp, err = ta.app.Test(httptest.NewRequest("DELETE", "/api/sessions/s1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "s1", ta.sessions.cleared)
}

func TestHealthController(t *testing.T) {
	ta := newTestApp(t, passThrough)

	resp, err := ta.app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)

	var health dto.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, dto.HealthResponse{Status: "ok", Started: "2025-01-01T00:00:00Z", Host: "localhost", Version: "1.0.0"}, health)

	resp, err = ta.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
