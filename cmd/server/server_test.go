package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpaperhq/evalmeter/internal/aggregation"
	"github.com/smartpaperhq/evalmeter/internal/cache"
	"github.com/smartpaperhq/evalmeter/internal/loader"
	"github.com/smartpaperhq/evalmeter/internal/monitoring"
	"github.com/smartpaperhq/evalmeter/internal/scoring"
	"github.com/smartpaperhq/evalmeter/internal/security"
	"github.com/smartpaperhq/evalmeter/internal/store"
)

func fixtureRecord(token, doi string, expertiseWeight float64) string {
	return fmt.Sprintf(`{
		"token": %q,
		"timestamp": "2025-03-01T10:00:00Z",
		"userInfo": {"name": "Dana", "role": "domain_expert", "expertiseWeight": %g},
		"metadata": {"doi": %q},
		"paperContent": {},
		"researchFields": {},
		"researchProblems": {},
		"templates": {},
		"evaluationMetrics": {
			"quality": {
				"metadata": {
					"titleQuality": {"value": 0.8, "userRating": 4},
					"descriptionQuality": {"value": 0.7, "userRating": 4},
					"propertyCoverage": 0.6,
					"researchAlignment": 0.9
				}
			}
		}
	}`, token, expertiseWeight, doi)
}

type testEnv struct {
	router    *gin.Engine
	repo      *store.Repository
	recordDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	appLogger := monitoring.NewLogger()
	recordDir := t.TempDir()
	recordLoader := loader.NewLoader(recordDir, time.Minute, appLogger)
	repo := store.NewRepository(db)

	server := NewServer(
		recordLoader,
		repo,
		cache.NewCache(time.Minute),
		monitoring.NewMetrics(),
		appLogger,
	)

	config := security.DefaultSecurityConfig()
	config.MaxRequestsPerMin = 100000

	return &testEnv{
		router:    buildRouter(server, config),
		repo:      repo,
		recordDir: recordDir,
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	return newTestEnv(t).router
}

func submitRecord(t *testing.T, router *gin.Engine, body string) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/evaluations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func getJSON(t *testing.T, router *gin.Engine, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	var resp map[string]any
	w := getJSON(t, router, "/health", &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])
	assert.Contains(t, resp, "metrics")
}

func TestSubmitAndFetchEvaluation(t *testing.T) {
	router := newTestRouter(t)
	submitRecord(t, router, fixtureRecord("tok-1", "10.1000/a", 8))

	var resp map[string]any
	w := getJSON(t, router, "/api/evaluations/tok-1", &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-1", resp["token"])
}

func TestFetchUnknownEvaluation(t *testing.T) {
	router := newTestRouter(t)

	w := getJSON(t, router, "/api/evaluations/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitInvalidEvaluation(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/evaluations", bytes.NewBufferString(`{"token": "only"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing required keys")
}

func TestListPapers(t *testing.T) {
	router := newTestRouter(t)
	submitRecord(t, router, fixtureRecord("tok-1", "10.1000/a", 5))
	submitRecord(t, router, fixtureRecord("tok-2", "10.1000/a", 8))
	submitRecord(t, router, fixtureRecord("tok-3", "10.1000/b", 5))

	var resp struct {
		Papers []struct {
			DOI             string `json:"doi"`
			EvaluationCount int    `json:"evaluation_count"`
		} `json:"papers"`
		PaperSetVersion string `json:"paper_set_version"`
	}
	w := getJSON(t, router, "/api/papers", &resp)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.Papers, 2)
	assert.NotEmpty(t, resp.PaperSetVersion)
	assert.Equal(t, "10.1000/a", resp.Papers[0].DOI)
	assert.Equal(t, 2, resp.Papers[0].EvaluationCount)
}

func TestPaperScores(t *testing.T) {
	router := newTestRouter(t)
	submitRecord(t, router, fixtureRecord("tok-1", "10.1000/a", 8))

	var resp aggregation.PaperScores
	w := getJSON(t, router, "/api/papers/10.1000%2Fa/scores?view=quality", &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10.1000/a", resp.DOI)
	assert.Equal(t, 1, resp.EvaluationCount)
	require.NotNil(t, resp.Components["metadata"])
	assert.Greater(t, resp.Components["metadata"].OverallFinal, 0.0)
	assert.Greater(t, resp.OverallScore, 0.0)
}

func TestPaperScoresSingleEvaluation(t *testing.T) {
	router := newTestRouter(t)
	submitRecord(t, router, fixtureRecord("tok-1", "10.1000/a", 8))

	var resp aggregation.PaperScores
	w := getJSON(t, router, "/api/papers/10.1000%2Fa/scores?view=quality&evaluation=0", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.EvaluationIndex)
	assert.Equal(t, 0, *resp.EvaluationIndex)

	w = getJSON(t, router, "/api/papers/10.1000%2Fa/scores?view=quality&evaluation=5", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaperScoresUnknownPaper(t *testing.T) {
	router := newTestRouter(t)

	w := getJSON(t, router, "/api/papers/10.1000%2Fmissing/scores", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaperScoresRejectsBadParams(t *testing.T) {
	router := newTestRouter(t)
	submitRecord(t, router, fixtureRecord("tok-1", "10.1000/a", 8))

	w := getJSON(t, router, "/api/papers/10.1000%2Fa/scores?view=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = getJSON(t, router, "/api/papers/10.1000%2Fa/scores?evaluation=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorpusReport(t *testing.T) {
	router := newTestRouter(t)
	submitRecord(t, router, fixtureRecord("tok-1", "10.1000/a", 8))
	submitRecord(t, router, fixtureRecord("tok-2", "10.1000/a", 5))
	submitRecord(t, router, fixtureRecord("tok-3", "10.1000/b", 5))

	var report aggregation.CorpusReport
	w := getJSON(t, router, "/api/corpus/metadata?view=quality", &report)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, report.UniquePapers)
	assert.Equal(t, 3, report.TotalEvaluations)
	assert.Equal(t, 3, report.QualityScores.Count)
	assert.Contains(t, report.ByDimension, "titleQuality")
}

func TestCorpusUnknownComponent(t *testing.T) {
	router := newTestRouter(t)

	w := getJSON(t, router, "/api/corpus/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScorePreview(t *testing.T) {
	router := newTestRouter(t)

	body := `{"automatedScore": 0.7, "userRating": 4, "expertiseWeight": 8}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/score/preview", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var trace scoring.CombineTrace
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trace))
	assert.InDelta(t, 1.6, trace.ExpertiseMultiplier, 1e-9)
	assert.InDelta(t, 0.8, trace.NormalizedRating, 1e-9)
	assert.InDelta(t, 1.0, trace.FinalScore, 1e-9)
}

func TestScorePreviewNoRatingPassesThrough(t *testing.T) {
	router := newTestRouter(t)

	body := `{"automatedScore": 0.42, "userRating": null, "expertiseWeight": 5}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/score/preview", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var trace scoring.CombineTrace
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trace))
	assert.InDelta(t, 0.42, trace.FinalScore, 1e-9)
}

func TestScorePreviewRejectsOutOfRangeRating(t *testing.T) {
	router := newTestRouter(t)

	body := `{"automatedScore": 0.7, "userRating": 7, "expertiseWeight": 5}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/score/preview", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsAndCacheStats(t *testing.T) {
	router := newTestRouter(t)
	getJSON(t, router, "/health", nil)

	var metricsResp map[string]any
	w := getJSON(t, router, "/metrics", &metricsResp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, metricsResp, "request_count")

	var cacheResp map[string]any
	w = getJSON(t, router, "/cache/stats", &cacheResp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, cacheResp, "responses")
	assert.Contains(t, cacheResp, "records")
}

func TestSecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(t)

	w := getJSON(t, router, "/health", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestCorpusReportReflectsNewSubmission(t *testing.T) {
	router := newTestRouter(t)
	submitRecord(t, router, fixtureRecord("tok-1", "10.1000/a", 8))

	var first aggregation.CorpusReport
	w := getJSON(t, router, "/api/corpus/metadata?view=quality", &first)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, first.TotalEvaluations)

	submitRecord(t, router, fixtureRecord("tok-2", "10.1000/b", 5))

	var second aggregation.CorpusReport
	w = getJSON(t, router, "/api/corpus/metadata?view=quality", &second)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, second.TotalEvaluations)
	assert.Equal(t, 2, second.UniquePapers)
}

func TestGetEvaluationFallsBackToStore(t *testing.T) {
	env := newTestEnv(t)

	row := &store.EvaluationRow{
		Token:           "tok-db",
		DOI:             "10.1000/a",
		EvaluatorName:   "Dana",
		EvaluatorRole:   "domain_expert",
		ExpertiseWeight: 8,
		Payload:         fixtureRecord("tok-db", "10.1000/a", 8),
		CreatedAt:       time.Now(),
	}
	require.NoError(t, env.repo.SaveEvaluation(row))

	var resp map[string]any
	w := getJSON(t, env.router, "/api/evaluations/tok-db", &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-db", resp["token"])
}

func TestListEvaluations(t *testing.T) {
	router := newTestRouter(t)
	submitRecord(t, router, fixtureRecord("tok-1", "10.1000/a", 8))
	submitRecord(t, router, fixtureRecord("tok-2", "10.1000/a", 5))
	submitRecord(t, router, fixtureRecord("tok-3", "10.1000/b", 5))

	var resp struct {
		Evaluations []store.EvaluationRow `json:"evaluations"`
		Count       int                   `json:"count"`
	}
	w := getJSON(t, router, "/api/evaluations?doi=10.1000%2Fa", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, resp.Count)

	w = getJSON(t, router, "/api/evaluations", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, resp.Count)
}

func TestListPapersFallsBackToStore(t *testing.T) {
	env := newTestEnv(t)
	submitRecord(t, env.router, fixtureRecord("tok-1", "10.1000/a", 8))
	submitRecord(t, env.router, fixtureRecord("tok-2", "10.1000/b", 5))

	require.NoError(t, os.RemoveAll(env.recordDir))

	var resp struct {
		Papers []struct {
			DOI             string `json:"doi"`
			EvaluationCount int    `json:"evaluation_count"`
		} `json:"papers"`
		Source string `json:"source"`
	}
	w := getJSON(t, env.router, "/api/papers", &resp)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.Papers, 2)
	assert.Equal(t, "store", resp.Source)
	assert.Equal(t, "10.1000/a", resp.Papers[0].DOI)
}

func TestCorpusServesSnapshotWhenRecordsUnavailable(t *testing.T) {
	env := newTestEnv(t)
	submitRecord(t, env.router, fixtureRecord("tok-1", "10.1000/a", 8))

	var live aggregation.CorpusReport
	w := getJSON(t, env.router, "/api/corpus/metadata?view=quality", &live)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, live.TotalEvaluations)

	require.NoError(t, os.RemoveAll(env.recordDir))

	var fallback aggregation.CorpusReport
	w = getJSON(t, env.router, "/api/corpus/metadata?view=quality", &fallback)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, fallback.TotalEvaluations)
	assert.Equal(t, 1, fallback.UniquePapers)
}
