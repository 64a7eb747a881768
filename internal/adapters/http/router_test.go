package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

type fakeIngestor struct {
	report *domain.IngestReport
	err    error
	gotLen int
}

func (f *fakeIngestor) IngestBatch(_ context.Context, docs []domain.Document) (*domain.IngestReport, error) {
	f.gotLen = len(docs)
	return f.report, f.err
}

func (f *fakeIngestor) RebuildCorpus(context.Context) (*domain.IngestReport, error) {
	return f.report, f.err
}

type fakeRetriever struct {
	retrieved *domain.RetrievedContext
	chat      *domain.ChatResult
	err       error
	gotQuery  string
	gotSessID string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query, sessionID string, _ int) (*domain.RetrievedContext, error) {
	f.gotQuery = query
	f.gotSessID = sessionID
	return f.retrieved, f.err
}

func (f *fakeRetriever) Chat(_ context.Context, query, sessionID string, _ int) (*domain.ChatResult, error) {
	f.gotQuery = query
	f.gotSessID = sessionID
	if f.err != nil {
		return nil, f.err
	}
	result := *f.chat
	result.SessionID = sessionID
	return &result, nil
}

type fakeDocReader struct {
	doc *domain.Document
	err error
}

func (f *fakeDocReader) GetBySourceID(context.Context, string) (*domain.Document, error) {
	return f.doc, f.err
}

type fakeQueue struct {
	rebuilds []string
	err      error
}

func (f *fakeQueue) PublishRebuildRequested(_ context.Context, batchID string) error {
	if f.err != nil {
		return f.err
	}
	f.rebuilds = append(f.rebuilds, batchID)
	return nil
}

func (f *fakeQueue) SubscribeRebuildRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *fakeQueue) PublishGenerationActivated(context.Context, string) error { return nil }

func (f *fakeQueue) SubscribeGenerationActivated(context.Context, func(context.Context, string) error) error {
	return nil
}

func newTestRouter(ingestor *fakeIngestor, retriever *fakeRetriever, docs *fakeDocReader, queue *fakeQueue) http.Handler {
	if ingestor == nil {
		ingestor = &fakeIngestor{report: &domain.IngestReport{}}
	}
	if retriever == nil {
		retriever = &fakeRetriever{retrieved: &domain.RetrievedContext{}, chat: &domain.ChatResult{}}
	}
	if docs == nil {
		docs = &fakeDocReader{}
	}
	if queue == nil {
		queue = &fakeQueue{}
	}
	return NewRouter(ingestor, retriever, docs, queue, nil, RateLimit{}).Handler()
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIngestDocumentsReturnsReport(t *testing.T) {
	ingestor := &fakeIngestor{report: &domain.IngestReport{BatchID: "b1", DocumentsIn: 1, DocumentsOK: 1}}
	handler := newTestRouter(ingestor, nil, nil, nil)

	body := `{"documents":[{"source_id":"faq","segments":[{"text":"hello","kind":"faq"}]}]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/corpus/documents", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ingestor.gotLen != 1 {
		t.Fatalf("expected 1 document passed through, got %d", ingestor.gotLen)
	}
	var report domain.IngestReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.BatchID != "b1" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestIngestDocumentsRejectsEmptyBody(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/corpus/documents", strings.NewReader(`{"documents":[]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty documents: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/corpus/documents", strings.NewReader(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json: status = %d", rec.Code)
	}
}

func TestGetDocumentNotFoundMapsTo404(t *testing.T) {
	docs := &fakeDocReader{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("missing"))}
	handler := newTestRouter(nil, nil, docs, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/corpus/documents/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestRebuildPublishesBatch(t *testing.T) {
	queue := &fakeQueue{}
	handler := newTestRouter(nil, nil, nil, queue)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/corpus/rebuild", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(queue.rebuilds) != 1 {
		t.Fatalf("expected 1 published rebuild, got %d", len(queue.rebuilds))
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["batch_id"] != queue.rebuilds[0] {
		t.Fatalf("response batch id %q does not match published %q", resp["batch_id"], queue.rebuilds[0])
	}
}

func TestRetrieveRequiresQuery(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"query":"  "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRetrieveReturnsPipelineOutput(t *testing.T) {
	retriever := &fakeRetriever{retrieved: &domain.RetrievedContext{
		Context:   "Source: faq\nContent: hello",
		Citations: []string{"faq"},
	}}
	handler := newTestRouter(nil, retriever, nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"query":"hello","session_id":"s1","k":3}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if retriever.gotQuery != "hello" || retriever.gotSessID != "s1" {
		t.Fatalf("retriever got %q / %q", retriever.gotQuery, retriever.gotSessID)
	}
	var got domain.RetrievedContext
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Citations) != 1 || got.Citations[0] != "faq" {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestChatAssignsSessionIDWhenMissing(t *testing.T) {
	retriever := &fakeRetriever{chat: &domain.ChatResult{Answer: "hi"}}
	handler := newTestRouter(nil, retriever, nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"hello"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if retriever.gotSessID == "" {
		t.Fatalf("expected a generated session id")
	}
	var got domain.ChatResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.SessionID != retriever.gotSessID {
		t.Fatalf("response session id %q does not match %q", got.SessionID, retriever.gotSessID)
	}
}

func TestTemporaryFailureMapsTo503(t *testing.T) {
	retriever := &fakeRetriever{err: domain.WrapError(domain.ErrTemporary, "embed query", fmt.Errorf("down"))}
	handler := newTestRouter(nil, retriever, nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"query":"hello"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}
