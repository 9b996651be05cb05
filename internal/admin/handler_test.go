package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/olapcore/internal/config"
	"github.com/hanpama/olapcore/internal/engine"
	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"
	"github.com/hanpama/olapcore/internal/metrics"
	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/resolver"
)

func newTestHandler(t *testing.T, cfg *config.Config, opts ...Option) (*Handler, *engine.Engine, *resolver.MockReader) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
		cfg.SSASCompatibleNaming = true
	}
	cat, _ := olap.NewSampleCatalog(cfg.Naming())
	reader := resolver.NewMockReader(cat)
	eng, err := engine.New(cfg, cat, reader)
	require.NoError(t, err)
	return New(eng, opts...), eng, reader
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestResolve(t *testing.T) {
	h, eng, reader := newTestHandler(t, nil)
	w := post(t, h, "/resolve", `{"cube":"Sales","axes":[["[Product].[Food].[Dairy]","[Product].[Food].[Deli]","[Product]"]],"slicer":["[Time].[1997]"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "done", got.State)
	require.Empty(t, got.Error)
	require.NotEmpty(t, got.Execution)
	want := []entryView{
		{Id: "[Product].[Food].[Dairy]", Status: "resolved", Role: "axis", Element: "[Product].[Food].[Dairy]", Hierarchy: "[Product]"},
		{Id: "[Product].[Food].[Deli]", Status: "resolved", Role: "axis", Element: "[Product].[Food].[Deli]", Hierarchy: "[Product]"},
		{Id: "[Product]", Status: "known", Role: "axis", Reason: "no-member-path", Element: "[Product]", Hierarchy: "[Product]"},
		{Id: "[Time].[1997]", Status: "resolved", Role: "slicer", Element: "[Time].[1997]", Hierarchy: "[Time]"},
	}
	if diff := cmp.Diff(want, got.Entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"{[Product].[Food].[Dairy], [Product].[Food].[Deli], [Product]}"}, got.Bound)
	// Product: All -> Food -> {Dairy, Deli}; Time: All -> 1997.
	require.Len(t, reader.GetCalls(), 3)
	// The statement is closed after the request.
	require.Equal(t, 0, eng.Registry().Len())
}

func TestResolveErrors(t *testing.T) {
	strict := config.Default()
	strict.StrictValidation = true
	h, _, _ := newTestHandler(t, strict)

	tests := []struct {
		name   string
		body   string
		status int
		errSub string
	}{
		{"invalid json", `{`, http.StatusBadRequest, "invalid JSON"},
		{"missing cube", `{"axes":[["[Product]"]]}`, http.StatusBadRequest, "missing 'cube'"},
		{"no identifiers", `{"cube":"Sales"}`, http.StatusBadRequest, "no identifiers"},
		{"bad identifier", `{"cube":"Sales","axes":[["[Product"]]}`, http.StatusBadRequest, "axes[0]"},
		{"unknown cube", `{"cube":"Warehouse","axes":[["[Product]"]]}`, http.StatusNotFound, "unknown cube"},
		{"strict not found", `{"cube":"Sales","axes":[["[Product].[Meat]"]]}`, http.StatusUnprocessableEntity, "MDX object '[Product].[Meat]' not found in cube 'Sales'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, "/resolve", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			require.Contains(t, w.Body.String(), tt.errSub)
		})
	}

	h, _, _ = newTestHandler(t, nil, WithMaxBodyBytes(8))
	w := post(t, h, "/resolve", `{"cube":"Sales","axes":[["[Product]"]]}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCancelStatement(t *testing.T) {
	h, eng, _ := newTestHandler(t, nil)
	stmt := eng.OpenStatement("idle")
	defer stmt.Close()

	w := post(t, h, "/statements/"+stmt.ID().String()+"/cancel", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/statements", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []statementView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, []statementView{{ID: stmt.ID().String(), Label: "idle", Phase: "created", CancelPending: true}}, list)

	w = post(t, h, "/statements/9.9/cancel", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	w = post(t, h, "/statements/garbage/cancel", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelRunningResolve(t *testing.T) {
	h, eng, reader := newTestHandler(t, nil)
	var listed []statementView
	reader.SetHook(func(ctx context.Context, call int, _ *olap.Member) error {
		if call != 1 {
			return nil
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/statements", nil))
		if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
			return err
		}
		for _, s := range eng.Registry().List() {
			post(t, h, "/statements/"+s.ID().String()+"/cancel", "")
		}
		return nil
	})

	w := post(t, h, "/resolve", `{"cube":"Sales","axes":[["[Product].[Food].[Dairy]"]]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var got resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "canceled", got.State)
	require.Equal(t, "execution: canceled", got.Error)
	require.Empty(t, got.Bound)
	require.Len(t, reader.GetCalls(), 1)

	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Current)
	require.Equal(t, "running", listed[0].Current.State)
	require.Equal(t, []string{"IdBatchResolver: resolve Sales", "IdBatchResolver: lookup [Product].[All Products]"}, listed[0].Current.Frames)
}

func TestRequestEventsAndMetrics(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	var mu sync.Mutex
	var finished []events.HTTPFinish
	defer eventbus.SubscribeTo(bus, func(_ context.Context, e events.HTTPFinish) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, e)
	})()

	reg := prometheus.NewRegistry()
	defer metrics.New(reg).Attach(bus)()
	h, _, _ := newTestHandler(t, nil, WithMetrics(metrics.Handler(reg)))

	req := httptest.NewRequest(http.MethodGet, "/statements", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "rid-1", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `olapcore_http_requests_total{route="GET /statements",status="200"} 1`)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finished, 2)
	require.Equal(t, "GET /statements", finished[0].Route)
	require.Equal(t, http.StatusOK, finished[0].Status)
	require.Equal(t, "GET /metrics", finished[1].Route)
}

func TestForwardedHeaders(t *testing.T) {
	h, _, reader := newTestHandler(t, nil, WithMetadataHeaders("X-Tenant"))
	var captured metadata.MD
	reader.SetHook(func(ctx context.Context, _ int, _ *olap.Member) error {
		captured, _ = metadata.FromOutgoingContext(ctx)
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/resolve", bytes.NewBufferString(`{"cube":"Sales","axes":[["[Product].[Food]"]]}`))
	req.Header.Set("X-Tenant", "acme")
	req.Header.Set("X-Other", "nope")
	req.Header.Set("X-Request-Id", "rid-2")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"acme"}, captured.Get("x-tenant"))
	require.Empty(t, captured.Get("x-other"))
	require.Equal(t, []string{"rid-2"}, captured.Get("x-request-id"))
}

func TestCORSAndPreflight(t *testing.T) {
	h, _, _ := newTestHandler(t, nil, WithCORS("https://ui.example"))
	req := httptest.NewRequest(http.MethodOptions, "/resolve", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://ui.example", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/statements", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
