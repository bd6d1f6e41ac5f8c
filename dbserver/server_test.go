package dbserver

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/observability"
)

// installTestTracer routes spans to an in-memory exporter for the duration
// of the test.
func installTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return exporter
}

type fakeStore struct {
	rows     []map[string]any
	affected int64
	err      error
	healthy  bool
}

func (f *fakeStore) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	return f.rows, f.err
}

func (f *fakeStore) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return f.affected, f.err
}

func (f *fakeStore) Healthy(ctx context.Context) bool { return f.healthy }

func testConfig() Config {
	return Config{
		JWTSecret: "test-secret",
		Users:     map[string]string{"harness": "pass123"},
		TokenTTL:  time.Minute,
	}
}

func newTestServer(t *testing.T, store *fakeStore) *Server {
	t.Helper()
	s, err := New(testConfig(), store, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func obtainToken(t *testing.T, s *Server) string {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/auth/token", "", tokenRequest{Username: "harness", Password: "pass123"})
	if w.Code != http.StatusOK {
		t.Fatalf("token request failed: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return out.Token
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeStore{healthy: true})
	w := doJSON(t, s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	down := newTestServer(t, &fakeStore{healthy: false})
	w = doJSON(t, down, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when store unhealthy, got %d", w.Code)
	}
}

func TestTokenEndpointRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t, &fakeStore{healthy: true})
	w := doJSON(t, s, http.MethodPost, "/auth/token", "", tokenRequest{Username: "harness", Password: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestQueryRequiresToken(t *testing.T) {
	s := newTestServer(t, &fakeStore{healthy: true})
	w := doJSON(t, s, http.MethodPost, "/query", "", queryRequest{SQL: "select 1"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/query", "garbage-token", queryRequest{SQL: "select 1"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", w.Code)
	}
}

func TestQueryReturnsRows(t *testing.T) {
	store := &fakeStore{
		healthy: true,
		rows:    []map[string]any{{"id": float64(1), "name": "alpha"}},
	}
	s := newTestServer(t, store)
	token := obtainToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/query", token, queryRequest{SQL: "select id, name from scenarios"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var out struct {
		Rows  []map[string]any `json:"rows"`
		Count int              `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Count != 1 || out.Rows[0]["name"] != "alpha" {
		t.Errorf("unexpected response %+v", out)
	}
}

func TestExecuteReturnsAffected(t *testing.T) {
	s := newTestServer(t, &fakeStore{healthy: true, affected: 3})
	token := obtainToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/execute", token, queryRequest{SQL: "delete from runs"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out struct {
		RowsAffected int64 `json:"rows_affected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.RowsAffected != 3 {
		t.Errorf("expected 3 rows affected, got %d", out.RowsAffected)
	}
}

func TestQueryStoreError(t *testing.T) {
	s := newTestServer(t, &fakeStore{healthy: true, err: stderrors.New("relation does not exist")})
	token := obtainToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/query", token, queryRequest{SQL: "select * from missing"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestQueryProducesSpans(t *testing.T) {
	exporter := installTestTracer(t)

	s := newTestServer(t, &fakeStore{healthy: true, rows: []map[string]any{{"id": float64(1)}}})
	token := obtainToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/query", token, queryRequest{SQL: "select 1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	names := make(map[string]bool)
	for _, span := range exporter.GetSpans() {
		names[span.Name] = true
	}
	if !names["POST /query"] {
		t.Errorf("expected a request span for /query, got %v", names)
	}
	if !names[observability.SpanDBQuery] {
		t.Errorf("expected a %s span, got %v", observability.SpanDBQuery, names)
	}
}

func TestStoreErrorRecordedOnSpan(t *testing.T) {
	exporter := installTestTracer(t)

	s := newTestServer(t, &fakeStore{healthy: true, err: stderrors.New("relation does not exist")})
	token := obtainToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/query", token, queryRequest{SQL: "select * from missing"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	found := false
	for _, span := range exporter.GetSpans() {
		if span.Name == observability.SpanDBQuery && len(span.Events) > 0 {
			found = true
		}
	}
	if !found {
		t.Error("expected the store error recorded on the query span")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without jwt secret and users")
	}
	if cfg.Port != 8085 {
		t.Errorf("expected default port 8085, got %d", cfg.Port)
	}
}

func TestClientRoundTrip(t *testing.T) {
	store := &fakeStore{
		healthy:  true,
		rows:     []map[string]any{{"id": float64(7)}},
		affected: 2,
	}
	s := newTestServer(t, store)
	srv := httptest.NewServer(s.Engine())
	defer srv.Close()

	p := NewClientProvider(nil)
	ctx := context.Background()
	conn, err := p.CreateConnection(ctx, "gw-1", connection.Settings{
		SettingBaseURL:  srv.URL,
		SettingUsername: "harness",
		SettingPassword: "pass123",
	})
	if err != nil {
		t.Fatalf("CreateConnection failed: %v", err)
	}
	client := conn.(*Client)

	if !client.Healthy(ctx) {
		t.Error("expected healthy gateway")
	}

	rows, err := client.Query(ctx, "select id from runs")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != float64(7) {
		t.Errorf("unexpected rows %v", rows)
	}

	affected, err := client.Exec(ctx, "update runs set done = true")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if affected != 2 {
		t.Errorf("expected 2 affected, got %d", affected)
	}
}

func TestClientBadCredentials(t *testing.T) {
	s := newTestServer(t, &fakeStore{healthy: true})
	srv := httptest.NewServer(s.Engine())
	defer srv.Close()

	p := NewClientProvider(nil)
	_, err := p.CreateConnection(context.Background(), "gw-1", connection.Settings{
		SettingBaseURL:  srv.URL,
		SettingUsername: "harness",
		SettingPassword: "wrong",
	})
	if err == nil {
		t.Fatal("expected authentication failure")
	}
}

func TestClientQueryAfterClose(t *testing.T) {
	s := newTestServer(t, &fakeStore{healthy: true})
	srv := httptest.NewServer(s.Engine())
	defer srv.Close()

	p := NewClientProvider(nil)
	ctx := context.Background()
	conn, err := p.CreateConnection(ctx, "gw-1", connection.Settings{
		SettingBaseURL:  srv.URL,
		SettingUsername: "harness",
		SettingPassword: "pass123",
	})
	if err != nil {
		t.Fatalf("CreateConnection failed: %v", err)
	}
	_ = conn.Close(ctx)

	_, err = conn.(*Client).Query(ctx, "select 1")
	if !errors.HasCode(err, errors.ErrCodeNotConnected) {
		t.Errorf("expected NOT_CONNECTED, got %v", err)
	}
}
