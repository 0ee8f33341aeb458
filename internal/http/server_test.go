package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risparmi/internal/adjust"
	"risparmi/internal/core"
	"risparmi/internal/metrics"
	"risparmi/internal/services"
	"risparmi/internal/storage"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f fakeCompleter) Complete(context.Context, string) (string, error) {
	return f.reply, f.err
}

const sampleCSV = "Rent,Food\n1000,400\n200,100\n"

func validUpload() upload {
	return upload{
		file:   sampleCSV,
		fields: map[string]string{FieldSavingsGoal: "20", FieldExcluded: "Food"},
	}
}

func newTestServer(t *testing.T, planner adjust.Planner, withHistory bool) (*Server, *storage.PlanRepository) {
	t.Helper()
	var (
		repo *storage.PlanRepository
		opts []services.Option
	)
	srvOpts := Options{Metrics: metrics.New(), RateLimitRPM: 1000}
	if withHistory {
		var err error
		repo, err = storage.NewPlanRepository(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		opts = append(opts, services.WithRecorder(repo))
		srvOpts.History = repo
	}
	srvOpts.Plans = services.NewPlanService(planner, opts...)

	srv := NewServer(":0", srvOpts)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, repo
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body["error"]
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, adjust.LocalCalculator{}, false)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="csv_file"`)
	assert.Contains(t, rr.Body.String(), `name="excluded_categories"`)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	for _, path := range []string{"/healthz", "/readyz", "/static/style.css"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestCalculateModelStrategy(t *testing.T) {
	completer := fakeCompleter{reply: "Here you go: {'Rent': 860, 'Food': 500} Enjoy!"}
	srv, repo := newTestServer(t, adjust.NewModelAdjuster(completer, nil, "huggingface", "m"), true)

	rr := serve(srv, newUploadRequest(t, validUpload()))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="adjusted_expenses.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Category", "Amount"}, {"Rent", "860"}, {"Food", "500"}}, records)

	id := rr.Header().Get("X-Plan-ID")
	require.NotEmpty(t, id)
	stored, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	rent, _ := stored.Original.Amount("Rent")
	assert.Equal(t, "1200", rent.String())

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/plans/"+id+"/csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Category,Amount\nRent,860\nFood,500\n", rr.Body.String())

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/plans?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var listing struct {
		Plans []struct {
			ID    string `json:"id"`
			Saved string `json:"saved"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
	require.Len(t, listing.Plans, 1)
	assert.Equal(t, id, listing.Plans[0].ID)
	assert.Equal(t, "340", listing.Plans[0].Saved)
}

func TestCalculateLocalStrategy(t *testing.T) {
	srv, _ := newTestServer(t, adjust.LocalCalculator{}, false)

	rr := serve(srv, newUploadRequest(t, validUpload()))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Category,Amount\nRent,860\nFood,500\n", rr.Body.String())
}

func TestCalculateValidation(t *testing.T) {
	srv, _ := newTestServer(t, adjust.LocalCalculator{}, false)

	u := validUpload()
	delete(u.fields, FieldExcluded)
	rr := serve(srv, newUploadRequest(t, u))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, MsgInvalidInput, errorBody(t, rr))
	assert.NotEqual(t, "text/csv", rr.Header().Get("Content-Type"))

	u = validUpload()
	u.file = ""
	rr = serve(srv, newUploadRequest(t, u))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, MsgFileNotProvided, errorBody(t, rr))
}

func TestCalculateUpstreamFailure(t *testing.T) {
	completer := fakeCompleter{err: errors.New("HTTP 503: Model is currently loading")}
	srv, _ := newTestServer(t, adjust.NewModelAdjuster(completer, nil, "huggingface", "m"), false)

	rr := serve(srv, newUploadRequest(t, validUpload()))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, errorBody(t, rr), "Model is currently loading")
}

func TestCalculateMalformedReply(t *testing.T) {
	srv, _ := newTestServer(t, adjust.NewModelAdjuster(fakeCompleter{reply: "Sorry, I can't."}, nil, "hf", "m"), false)

	rr := serve(srv, newUploadRequest(t, validUpload()))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, errorBody(t, rr), core.ErrMalformedOutput.Error())
}

func TestCalculateNonNumericCSV(t *testing.T) {
	srv, _ := newTestServer(t, adjust.LocalCalculator{}, false)

	u := validUpload()
	u.file = "Rent,Food\nabc,1\n"
	rr := serve(srv, newUploadRequest(t, u))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, errorBody(t, rr), "non-numeric")
}

func TestCalculateMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, adjust.LocalCalculator{}, false)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/calculate_expenses", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
}

func TestHistoryRoutes(t *testing.T) {
	srv, _ := newTestServer(t, adjust.LocalCalculator{}, false)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/plans", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	srv, _ = newTestServer(t, adjust.LocalCalculator{}, true)
	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/plans/missing/csv", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, errorBody(t, rr), "plan not found")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, adjust.LocalCalculator{}, false)
	serve(srv, newUploadRequest(t, validUpload()))

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `risparmi_http_requests_total{route="/calculate_expenses",status="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	srv := NewServer(":0", Options{Plans: services.NewPlanService(adjust.LocalCalculator{}), RateLimitRPM: 1})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}
