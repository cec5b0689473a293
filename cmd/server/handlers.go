package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/smartpaperhq/evalmeter/internal/aggregation"
	"github.com/smartpaperhq/evalmeter/internal/cache"
	"github.com/smartpaperhq/evalmeter/internal/errors"
	"github.com/smartpaperhq/evalmeter/internal/evalrecord"
	"github.com/smartpaperhq/evalmeter/internal/loader"
	"github.com/smartpaperhq/evalmeter/internal/monitoring"
	"github.com/smartpaperhq/evalmeter/internal/scoring"
	"github.com/smartpaperhq/evalmeter/internal/security"
	"github.com/smartpaperhq/evalmeter/internal/store"
)

const serverVersion = "1.0.0"

// Server bundles the collaborators every handler needs.
type Server struct {
	loader  *loader.Loader
	repo    *store.Repository
	cache   *cache.Cache
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
}

// NewServer assembles a server from its collaborators
func NewServer(l *loader.Loader, repo *store.Repository, c *cache.Cache, metrics *monitoring.Metrics, logger *monitoring.Logger) *Server {
	return &Server{
		loader:  l,
		repo:    repo,
		cache:   c,
		metrics: metrics,
		logger:  logger,
	}
}

// buildRouter wires middleware and routes onto a fresh engine.
func buildRouter(s *Server, securityConfig security.SecurityConfig) *gin.Engine {
	r := gin.New()

	// DOIs contain slashes, so path parameters must arrive URL-encoded and
	// be unescaped after routing.
	r.UseRawPath = true
	r.UnescapePathValues = false

	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	securityMiddleware := security.NewSecurityMiddleware(securityConfig)
	r.Use(securityMiddleware.SecurityHeaders)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(securityMiddleware.RateLimitByIP)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     securityConfig.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	r.Use(s.cache.Middleware(s.metrics, s.corpusVersion))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/cache/stats", s.handleCacheStats)

	api := r.Group("/api")
	{
		api.GET("/evaluations", s.handleListEvaluations)
		api.GET("/evaluations/:token", s.handleGetEvaluation)
		api.POST("/evaluations", s.handleSubmitEvaluation)
		api.GET("/papers", s.handleListPapers)
		api.GET("/papers/:doi/scores", s.handlePaperScores)
		api.GET("/corpus/:component", s.handleCorpus)
		api.POST("/score/preview", s.handleScorePreview)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   serverVersion,
		"metrics":   s.metrics.GetStats(),
		"cache":     s.cache.Stats(),
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.GetStats())
}

func (s *Server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"responses": s.cache.Stats(),
		"records":   s.loader.CacheStats(),
	})
}

// corpusVersion is the response-cache key component for aggregate endpoints.
// An empty string (record directory unreadable) disables response caching.
func (s *Server) corpusVersion(*gin.Context) string {
	version, err := s.loader.Version()
	if err != nil {
		return ""
	}
	return version
}

func (s *Server) handleGetEvaluation(c *gin.Context) {
	token := c.Param("token")

	record := s.loader.LoadByToken(c.Request.Context(), token)
	if record == nil {
		record = s.storedRecord(token)
	}
	if record == nil {
		appErr := errors.NewNotFoundError("evaluation", token)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	c.JSON(http.StatusOK, record)
}

// storedRecord recovers a submitted record from the database when its file
// is gone from the record directory.
func (s *Server) storedRecord(token string) *evalrecord.EvaluationRecord {
	row, err := s.repo.GetEvaluation(token)
	if err != nil || row == nil {
		return nil
	}
	record, err := evalrecord.Parse([]byte(row.Payload))
	if err != nil {
		return nil
	}
	return record
}

func (s *Server) handleListEvaluations(c *gin.Context) {
	var rows []*store.EvaluationRow
	var err error

	if doi := c.Query("doi"); doi != "" {
		rows, err = s.repo.ListByDOI(doi)
	} else {
		rows, err = s.repo.ListAll()
	}
	if err != nil {
		appErr := errors.NewStorageError("list evaluations", err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	if rows == nil {
		rows = []*store.EvaluationRow{}
	}
	c.JSON(http.StatusOK, gin.H{
		"evaluations": rows,
		"count":       len(rows),
	})
}

func (s *Server) handleSubmitEvaluation(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		appErr := errors.NewValidationError("failed to read request body")
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	record, err := evalrecord.Parse(body)
	if err != nil {
		appErr := errors.NewValidationError(err.Error())
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	row := &store.EvaluationRow{
		Token:           record.Token,
		DOI:             record.DOI(),
		EvaluatorName:   record.UserInfo.Name,
		EvaluatorRole:   record.UserInfo.Role,
		ExpertiseWeight: record.UserInfo.ExpertiseWeight,
		Payload:         string(body),
		CreatedAt:       time.Now(),
	}

	start := time.Now()
	err = s.repo.SaveEvaluation(row)
	s.logger.StoreLogger("save", "evaluations", time.Since(start), err)
	if err != nil {
		appErr := errors.NewStorageError("save evaluation", err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	if err := s.loader.Store(record.Token, body); err != nil {
		appErr := errors.NewStorageError("store evaluation record", err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": record.Token,
		"doi":   row.DOI,
	})
}

type paperSummary struct {
	DOI             string `json:"doi"`
	EvaluationCount int    `json:"evaluation_count"`
}

func (s *Server) handleListPapers(c *gin.Context) {
	papers, version, err := s.loader.LoadAll(c.Request.Context())
	if err != nil {
		// Record directory unreadable; the database still knows the corpus.
		s.listPapersFromStore(c, err)
		return
	}

	summaries := make([]paperSummary, 0, len(papers))
	for _, paper := range papers {
		summaries = append(summaries, paperSummary{
			DOI:             paper.DOI,
			EvaluationCount: len(paper.Evaluations),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"papers":            summaries,
		"paper_set_version": version,
	})
}

func (s *Server) listPapersFromStore(c *gin.Context, loadErr error) {
	counts, err := s.repo.ListDOIs()
	if err != nil {
		appErr := errors.NewStorageError("load papers", loadErr)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	summaries := make([]paperSummary, 0, len(counts))
	for doi, n := range counts {
		summaries = append(summaries, paperSummary{DOI: doi, EvaluationCount: n})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].DOI < summaries[j].DOI })

	c.JSON(http.StatusOK, gin.H{
		"papers":            summaries,
		"paper_set_version": "",
		"source":            "store",
	})
}

func (s *Server) handlePaperScores(c *gin.Context) {
	doi, err := url.PathUnescape(c.Param("doi"))
	if err != nil || doi == "" {
		appErr := errors.NewValidationError("invalid doi parameter")
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	view, ok := evalrecord.ParseView(c.Query("view"))
	if !ok {
		appErr := errors.NewValidationError("unknown view: " + c.Query("view"))
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	var evaluationIndex *int
	if raw := c.Query("evaluation"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil || i < 0 {
			appErr := errors.NewValidationError("evaluation must be a non-negative integer")
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		evaluationIndex = &i
	}

	papers, _, err := s.loader.LoadAll(c.Request.Context())
	if err != nil {
		appErr := errors.NewStorageError("load papers", err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	for _, paper := range papers {
		if paper.DOI != doi {
			continue
		}
		if evaluationIndex != nil && *evaluationIndex >= len(paper.Evaluations) {
			appErr := errors.NewNotFoundError("evaluation index", c.Query("evaluation"))
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, aggregation.ScoresForPaper(paper, evaluationIndex, view))
		return
	}

	appErr := errors.NewNotFoundError("paper", doi)
	errors.LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
}

func (s *Server) handleCorpus(c *gin.Context) {
	component, ok := evalrecord.ParseComponent(c.Param("component"))
	if !ok {
		appErr := errors.NewValidationError("unknown component: " + c.Param("component"))
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	view, ok := evalrecord.ParseView(c.Query("view"))
	if !ok {
		appErr := errors.NewValidationError("unknown view: " + c.Query("view"))
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	start := time.Now()

	papers, version, err := s.loader.LoadAll(c.Request.Context())
	if err != nil {
		// Serve the last persisted report rather than failing outright.
		if snapshot, snapErr := s.repo.LatestSnapshot(string(component), string(view)); snapErr == nil && snapshot != nil {
			var report aggregation.CorpusReport
			if json.Unmarshal([]byte(snapshot.Report), &report) == nil {
				s.logger.AggregationLogger(string(component), string(view), report.UniquePapers, report.TotalEvaluations, time.Since(start), true)
				c.JSON(http.StatusOK, report)
				return
			}
		}
		appErr := errors.NewStorageError("load papers", err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	key := cache.AggregateKey(version, string(component), string(view), nil)
	if data, found := s.cache.Get(key); found {
		var report aggregation.CorpusReport
		if json.Unmarshal(data, &report) == nil {
			s.metrics.IncrementCacheHit()
			s.logger.AggregationLogger(string(component), string(view), report.UniquePapers, report.TotalEvaluations, time.Since(start), true)
			c.JSON(http.StatusOK, report)
			return
		}
	}

	report := aggregation.Aggregate(papers, component, view)
	s.metrics.IncrementAggregationsRun()
	s.logger.AggregationLogger(string(component), string(view), report.UniquePapers, report.TotalEvaluations, time.Since(start), false)

	if data, err := json.Marshal(report); err == nil {
		s.cache.Set(key, data)

		snapshot := store.NewAggregateSnapshot(version, string(component), string(view), string(data))
		storeStart := time.Now()
		saveErr := s.repo.SaveSnapshot(snapshot)
		s.logger.StoreLogger("save", "aggregate_snapshots", time.Since(storeStart), saveErr)
	}

	c.JSON(http.StatusOK, report)
}

// scorePreviewRequest is one what-if score combination
type scorePreviewRequest struct {
	AutomatedScore  float64  `json:"automatedScore"`
	UserRating      *float64 `json:"userRating"`
	ExpertiseWeight float64  `json:"expertiseWeight"`
}

func (s *Server) handleScorePreview(c *gin.Context) {
	var req scorePreviewRequest
	if err := c.BindJSON(&req); err != nil {
		appErr := errors.ToAppError(err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	if req.UserRating != nil && (*req.UserRating < 1 || *req.UserRating > 5) {
		appErr := errors.NewValidationError("userRating must be between 1 and 5")
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	multiplier := scoring.ExpertiseMultiplier(req.ExpertiseWeight)
	c.JSON(http.StatusOK, scoring.CombineDetail(req.AutomatedScore, req.UserRating, multiplier))
}
