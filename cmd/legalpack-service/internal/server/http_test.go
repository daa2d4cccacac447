package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/conf"
	"dealtracker/cmd/legalpack-service/internal/domain"
	"dealtracker/cmd/legalpack-service/internal/service"
)

type stubClient struct {
	response string
	err      error
}

func (c *stubClient) Complete(context.Context, *biz.CompletionRequest) (string, error) {
	return c.response, c.err
}

type stubRepo struct {
	sessions map[string]*domain.AnalysisSession
}

func (r *stubRepo) Create(_ context.Context, s *domain.AnalysisSession) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *stubRepo) GetByID(_ context.Context, id string) (*domain.AnalysisSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (r *stubRepo) AppendQA(_ context.Context, id string, _ domain.QAEntry) error {
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

func testServer(t *testing.T, client biz.CompletionClient) (*HTTPServer, *stubRepo) {
	t.Helper()

	cfg := &conf.Config{}
	cfg.Server.MaxUploadBytes = 10 * 1024 * 1024
	cfg.Analysis.BatchTokenLimit = 12000
	cfg.Analysis.OutputTokenLimit = 4096
	cfg.Analysis.TotalDocumentLimit = 100000
	cfg.Extract.MinPageTextChars = 100
	cfg.Extract.MaxPDFPages = 50
	cfg.Observability.ServiceName = "legalpack-service"

	logger := zap.NewNop()
	counter := biz.NewTokenCounter(logger)
	extractor := biz.NewExtractor(cfg, nil, nil, logger)
	expander := biz.NewExpander(extractor, counter, logger)
	batcher := biz.NewBatcher(counter, cfg.Analysis.BatchTokenLimit, logger)
	orchestrator := biz.NewOrchestrator(client, cfg.Analysis.OutputTokenLimit, logger)
	repo := &stubRepo{sessions: make(map[string]*domain.AnalysisSession)}
	uc := biz.NewLegalPackUsecase(cfg, expander, batcher, orchestrator, repo, nil, nil, nil, logger)

	return NewHTTPServer(service.NewLegalPackService(uc), cfg, logger), repo
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/legal-packs/analyze", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, &stubClient{response: "analysis"})

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "legalpack-service")
}

func TestAnalyze_SingleDocument(t *testing.T) {
	srv, repo := testServer(t, &stubClient{response: "pack analysis"})

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, uploadRequest(t, "survey.txt", []byte("structural survey findings")))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		SessionID string `json:"session_id"`
		Analysis  string `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pack analysis", resp.Analysis)
	assert.Contains(t, repo.sessions, resp.SessionID)
}

func TestAnalyze_NoFile(t *testing.T) {
	srv, _ := testServer(t, &stubClient{response: "analysis"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/legal-packs/analyze", nil)
	srv.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "suggestion")
}

func TestAnalyze_CorruptArchive(t *testing.T) {
	srv, _ := testServer(t, &stubClient{response: "analysis"})

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, uploadRequest(t, "pack.zip", []byte("not a zip at all")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "corrupt")
	assert.NotEmpty(t, resp["suggestion"])
}

func TestAnalyze_BackendDown(t *testing.T) {
	srv, _ := testServer(t, &stubClient{err: assert.AnError})

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, uploadRequest(t, "survey.txt", []byte("survey findings")))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAskQuestion(t *testing.T) {
	srv, repo := testServer(t, &stubClient{response: "covenant answer"})

	session, err := domain.NewAnalysisSession("", []*domain.ProcessedDocument{
		{Name: "lease.txt", Content: "lease", TokenCount: 2},
	}, "initial analysis")
	require.NoError(t, err)
	repo.sessions[session.ID] = session

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"question": "What covenants apply?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/legal-packs/"+session.ID+"/questions", body)
	req.Header.Set("Content-Type", "application/json")
	srv.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "What covenants apply?", resp.Question)
	assert.Equal(t, "covenant answer", resp.Answer)
}

func TestAskQuestion_UnknownSession(t *testing.T) {
	srv, _ := testServer(t, &stubClient{response: "answer"})

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"question": "Anything?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/legal-packs/lps_missing/questions", body)
	req.Header.Set("Content-Type", "application/json")
	srv.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAskQuestion_EmptyQuestion(t *testing.T) {
	srv, repo := testServer(t, &stubClient{response: "answer"})

	session, err := domain.NewAnalysisSession("", []*domain.ProcessedDocument{
		{Name: "lease.txt", Content: "lease", TokenCount: 2},
	}, "initial analysis")
	require.NoError(t, err)
	repo.sessions[session.ID] = session

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"question": ""}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/legal-packs/"+session.ID+"/questions", body)
	req.Header.Set("Content-Type", "application/json")
	srv.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSession(t *testing.T) {
	srv, repo := testServer(t, &stubClient{response: "answer"})

	session, err := domain.NewAnalysisSession("prop_9", []*domain.ProcessedDocument{
		{Name: "lease.txt", Content: "lease", TokenCount: 2},
	}, "initial analysis")
	require.NoError(t, err)
	repo.sessions[session.ID] = session

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/legal-packs/"+session.ID, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "initial analysis")
	assert.Contains(t, w.Body.String(), "prop_9")
}

func TestGetSession_NotFound(t *testing.T) {
	srv, _ := testServer(t, &stubClient{response: "answer"})

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/legal-packs/lps_missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
