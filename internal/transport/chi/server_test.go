package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/recipedex/internal/answerer"
	"github.com/kailas-cloud/recipedex/internal/domain"
	"github.com/kailas-cloud/recipedex/internal/logger"
	"github.com/kailas-cloud/recipedex/internal/retriever"
)

type mockRetriever struct {
	hits []domain.Hit
	err  error

	query string
	k     int
	mode  retriever.Mode
}

func (m *mockRetriever) Search(
	_ context.Context, query string, k int, mode retriever.Mode,
) ([]domain.Hit, error) {
	m.query, m.k, m.mode = query, k, mode
	return m.hits, m.err
}

type mockAnswerer struct {
	answer answerer.Answer
	err    error

	docs     []domain.Hit
	thinking domain.ThinkingLevel
}

func (m *mockAnswerer) Answer(
	_ context.Context, _ string, docs []domain.Hit, thinking domain.ThinkingLevel,
) (answerer.Answer, error) {
	m.docs, m.thinking = docs, thinking
	return m.answer, m.err
}

func (m *mockAnswerer) Model() string { return m.answer.Model }

func testLimits() Limits {
	return Limits{DefaultResults: 10, MaxResults: 100}
}

func readyServer(t *testing.T, ret Retriever, ans Answerer) *Server {
	t.Helper()
	s := NewServer(testLimits(), zap.NewNop())
	s.SetReady(ret, ans)
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	s.Routes(r)

	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestHandleQuery_HappyPath(t *testing.T) {
	ret := &mockRetriever{hits: []domain.Hit{{ID: "r1", Text: "Chill the dough.", Score: 0.8}}}
	ans := &mockAnswerer{answer: answerer.Answer{
		Text: "Chill it first.", Thinking: domain.ThinkingLow, Model: "gpt-test",
	}}
	s := readyServer(t, ret, ans)

	rec := do(t, s, http.MethodPost, "/query",
		`{"question":"Why chill cookie dough?","nbResults":3,"thinking":"low"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp queryResponse
	decodeInto(t, rec, &resp)
	if resp.Answer != "Chill it first." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.NbResults != 3 {
		t.Errorf("nbResults = %d, want 3", resp.NbResults)
	}
	if resp.Thinking != "low" {
		t.Errorf("thinking = %q", resp.Thinking)
	}
	if resp.Model != "gpt-test" {
		t.Errorf("model = %q", resp.Model)
	}

	if ret.mode != retriever.ModeHybrid {
		t.Errorf("retrieval mode = %q, want hybrid", ret.mode)
	}
	if ret.k != 3 {
		t.Errorf("retrieval k = %d, want 3", ret.k)
	}
	if len(ans.docs) != 1 || ans.docs[0].ID != "r1" {
		t.Errorf("answerer docs = %v", ans.docs)
	}
	if ans.thinking != domain.ThinkingLow {
		t.Errorf("answerer thinking = %q", ans.thinking)
	}
}

func TestHandleQuery_DefaultThinkingEchoed(t *testing.T) {
	ret := &mockRetriever{}
	ans := &mockAnswerer{answer: answerer.Answer{
		Text: "ok", Thinking: domain.ThinkingDefault, Model: "gpt-test",
	}}
	s := readyServer(t, ret, ans)

	rec := do(t, s, http.MethodPost, "/query", `{"question":"q?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp queryResponse
	decodeInto(t, rec, &resp)
	if resp.Thinking != "default" {
		t.Errorf("thinking = %q, want default", resp.Thinking)
	}
	if resp.NbResults != 10 {
		t.Errorf("nbResults = %d, want the default 10", resp.NbResults)
	}
}

func TestHandleQuery_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"question":`},
		{"missing question", `{}`},
		{"blank question", `{"question":"   "}`},
		{"invalid thinking", `{"question":"q?","thinking":"maximum"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := readyServer(t, &mockRetriever{}, &mockAnswerer{})
			rec := do(t, s, http.MethodPost, "/query", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}

			var resp errorResponse
			decodeInto(t, rec, &resp)
			if resp.Error == "" {
				t.Error("error body is empty")
			}
		})
	}
}

func TestHandleQuery_NotReady(t *testing.T) {
	for _, tc := range []struct {
		name    string
		prepare func(*Server)
	}{
		{"loading", func(*Server) {}},
		{"degraded", func(s *Server) { s.SetDegraded() }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(testLimits(), zap.NewNop())
			tc.prepare(s)

			rec := do(t, s, http.MethodPost, "/query", `{"question":"q?"}`)
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want 503", rec.Code)
			}
		})
	}
}

func TestHandleQuery_ProviderErrorsStayOpaque(t *testing.T) {
	secret := "api key sk-12345 rejected"

	for _, tc := range []struct {
		name     string
		sentinel error
	}{
		{"embedding", domain.ErrEmbeddingProvider},
		{"generation", domain.ErrGenerationProvider},
		{"model mismatch", domain.ErrModelMismatch},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ret := &mockRetriever{err: fmt.Errorf("%w: %s", tc.sentinel, secret)}
			s := readyServer(t, ret, &mockAnswerer{})

			rec := do(t, s, http.MethodPost, "/query", `{"question":"q?"}`)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}

			var resp errorResponse
			decodeInto(t, rec, &resp)
			if resp.Error != tc.sentinel.Error() {
				t.Errorf("body = %q, want the bare sentinel %q", resp.Error, tc.sentinel.Error())
			}
			if strings.Contains(rec.Body.String(), secret) {
				t.Error("wrapped provider detail leaked to the client")
			}
		})
	}
}

func TestHandleQuery_InvalidArgumentFromRetrieverIs400(t *testing.T) {
	ret := &mockRetriever{err: fmt.Errorf("%w: k must be positive", domain.ErrInvalidArgument)}
	s := readyServer(t, ret, &mockAnswerer{})

	rec := do(t, s, http.MethodPost, "/query", `{"question":"q?"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleQuery_LogsThroughRequestScopedLogger(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	reqLog := zap.New(core).With(zap.String("request_id", "req-42"))

	ans := &mockAnswerer{answer: answerer.Answer{
		Text: "ok", Thinking: domain.ThinkingDefault, Model: "gpt-test",
	}}
	s := readyServer(t, &mockRetriever{}, ans)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logger.ContextWith(req.Context(), reqLog)))
		})
	})
	s.Routes(r)

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(`{"question":"q?"}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	entries := observed.FilterMessage("query").All()
	if len(entries) != 1 {
		t.Fatalf("got %d 'query' log entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-42" {
		t.Errorf("query log request_id = %v, want req-42", got)
	}
}

func TestHandleData(t *testing.T) {
	ret := &mockRetriever{hits: []domain.Hit{
		{ID: "r1", Text: "Sear the meat.", Score: 0.9},
		{ID: "r2", Text: "Rest the meat.", Score: 0.5},
	}}
	s := readyServer(t, ret, &mockAnswerer{})

	rec := do(t, s, http.MethodPost, "/data", `{"question":"How to cook steak?","nbResults":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp dataResponse
	decodeInto(t, rec, &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("got %d rows, want 2", len(resp.Data))
	}
	if resp.Data[0].ID != "r1" || resp.Data[0].Score != 0.9 {
		t.Errorf("row 0 = %+v", resp.Data[0])
	}
	if ret.mode != retriever.ModeHybrid {
		t.Errorf("retrieval mode = %q, want hybrid", ret.mode)
	}
}

func TestHandleData_EmptyStoreGivesEmptyList(t *testing.T) {
	s := readyServer(t, &mockRetriever{}, &mockAnswerer{})

	rec := do(t, s, http.MethodPost, "/data", `{"question":"q?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp dataResponse
	decodeInto(t, rec, &resp)
	if resp.Data == nil {
		t.Error("data must be an empty list, not null")
	}
	if len(resp.Data) != 0 {
		t.Errorf("got %d rows, want 0", len(resp.Data))
	}
}

func TestHandleHealth(t *testing.T) {
	cases := []struct {
		name       string
		prepare    func(*Server)
		wantStatus int
		wantBody   string
	}{
		{"loading", func(*Server) {}, http.StatusServiceUnavailable, "loading"},
		{"ready", func(s *Server) { s.SetReady(&mockRetriever{}, &mockAnswerer{}) }, http.StatusOK, "ok"},
		{"degraded", func(s *Server) { s.SetDegraded() }, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(testLimits(), zap.NewNop())
			tc.prepare(s)

			rec := do(t, s, http.MethodGet, "/health", "")
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			var resp healthResponse
			decodeInto(t, rec, &resp)
			if resp.Status != tc.wantBody {
				t.Errorf("status = %q, want %q", resp.Status, tc.wantBody)
			}
		})
	}
}

func TestClampResults(t *testing.T) {
	s := NewServer(Limits{DefaultResults: 10, MaxResults: 100}, zap.NewNop())

	intp := func(v int) *int { return &v }

	cases := []struct {
		name string
		nb   *int
		want int
	}{
		{"absent uses default", nil, 10},
		{"zero uses default", intp(0), 10},
		{"negative uses default", intp(-3), 10},
		{"in range", intp(42), 42},
		{"above max clamps", intp(5000), 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.clampResults(tc.nb); got != tc.want {
				t.Errorf("clampResults(%v) = %d, want %d", tc.nb, got, tc.want)
			}
		})
	}
}
