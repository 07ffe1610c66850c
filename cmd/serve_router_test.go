package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/invoice-analytics/internal/analytics"
	"github.com/sells-group/invoice-analytics/internal/model"
	"github.com/sells-group/invoice-analytics/internal/monitoring"
	"github.com/sells-group/invoice-analytics/internal/store"
)

// fakeAnswerer returns a canned answer and records the question it saw.
type fakeAnswerer struct {
	ans  *model.AnalyticsAnswer
	last model.Question
}

func (f *fakeAnswerer) Answer(_ context.Context, q model.Question) *model.AnalyticsAnswer {
	f.last = q
	return f.ans
}

func newRouterStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "invoices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	invoices := []model.Invoice{
		{InvoiceNumber: "INV-001", InvoiceDate: "2025-10-03", VendorName: "Nedstone", TotalAmount: 4500, Currency: "UAH", RiskLevel: model.RiskLow},
		{InvoiceNumber: "INV-002", InvoiceDate: "2025-10-21", VendorName: "Nedstone", TotalAmount: 3000, Currency: "UAH", RiskLevel: model.RiskLow},
		{InvoiceNumber: "INV-003", InvoiceDate: "2025-09-12", VendorName: "Zoom", TotalAmount: 120, Currency: "USD", RiskLevel: model.RiskHigh, RiskScore: 80},
	}
	for _, inv := range invoices {
		require.NoError(t, st.SaveInvoice(ctx, inv))
	}
	return st
}

func newTestRouter(t *testing.T, p questionAnswerer) (http.Handler, *monitoring.PrometheusSink) {
	t.Helper()
	sink := monitoring.NewPrometheusSink()
	return buildRouter(p, newRouterStore(t), sink, semaphore.NewWeighted(4)), sink
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Chat(t *testing.T) {
	fake := &fakeAnswerer{ans: &model.AnalyticsAnswer{
		ID:       "a-1",
		Question: "Скільки інвойсів від Nedstone?",
		State:    analytics.StateAnswered,
		RowCount: 1,
	}}
	router, _ := newTestRouter(t, fake)

	payload, _ := json.Marshal(map[string]string{"question": "Скільки інвойсів від Nedstone?"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp model.AnalyticsAnswer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "a-1", resp.ID)
	assert.Equal(t, analytics.StateAnswered, resp.State)

	// Router builds the question with script-based language detection.
	assert.Equal(t, model.LanguageUkrainian, fake.last.Language)
}

func TestRouter_Chat_InvalidJSON(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestRouter_Chat_MissingQuestion(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte("{}")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "question is required")
}

func TestRouter_VendorList(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/analytics/vendor/Nedstone", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Invoices []model.Invoice `json:"invoices"`
		Count    int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	for _, inv := range resp.Invoices {
		assert.Equal(t, "Nedstone", inv.VendorName)
	}
}

func TestRouter_VendorList_LimitParam(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/analytics/vendor/Nedstone?limit=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestRouter_VendorAggregate(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/analytics/vendor/Nedstone/aggregate", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Vendor     string                  `json:"vendor"`
		Aggregates []model.VendorAggregate `json:"aggregates"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Nedstone", resp.Vendor)
	require.Len(t, resp.Aggregates, 1)
	assert.Equal(t, "UAH", resp.Aggregates[0].Currency)
	assert.Equal(t, 2, resp.Aggregates[0].InvoiceCount)
	assert.InDelta(t, 7500, resp.Aggregates[0].TotalSum, 0.001)
}

func TestRouter_HighRisk(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/analytics/high-risk", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Invoices []model.Invoice `json:"invoices"`
		Count    int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Zoom", resp.Invoices[0].VendorName)
}

func TestRouter_Stats(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/analytics/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var snap monitoring.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.True(t, snap.StoreOK)
	assert.Equal(t, 3, snap.Store.TotalInvoices)
	assert.Equal(t, 2, snap.Store.UniqueVendors)
}

func TestRouter_Metrics(t *testing.T) {
	router, sink := newTestRouter(t, &fakeAnswerer{})
	sink.RecordQuestion("sum_total", analytics.StateAnswered, 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "analytics_questions_total")
}

func TestQueryLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/analytics/high-risk?limit=25", nil)
	assert.Equal(t, 25, queryLimit(req))

	req = httptest.NewRequest(http.MethodGet, "/analytics/high-risk", nil)
	assert.Equal(t, 0, queryLimit(req))

	req = httptest.NewRequest(http.MethodGet, "/analytics/high-risk?limit=abc", nil)
	assert.Equal(t, 0, queryLimit(req))
}
