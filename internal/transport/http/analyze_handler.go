package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"ncacli/internal/config"
	"ncacli/internal/middleware"
	"ncacli/internal/nca"
	"ncacli/internal/population"
)

// AnalyzeRequest is the POST /api/analyze payload. Options follow the
// analysis section of the configuration file; absent options fall back to
// the server defaults.
type AnalyzeRequest struct {
	Subjects []nca.Subject          `json:"subjects" validate:"required,min=1,dive"`
	Options  *config.AnalysisConfig `json:"options,omitempty"`
}

// AnalyzeResponse wraps the population results with request bookkeeping.
type AnalyzeResponse struct {
	RequestID string                `json:"request_id,omitempty"`
	Elapsed   string                `json:"elapsed"`
	Results   nca.PopulationResults `json:"results"`
}

// AnalyzeHandler runs population analyses over uploaded subject data.
type AnalyzeHandler struct {
	defaults config.AnalysisConfig
	logger   *slog.Logger
	validate *validator.Validate
	metrics  *Metrics
}

// NewAnalyzeHandler creates an analyze handler with the given default
// analysis options.
func NewAnalyzeHandler(defaults config.AnalysisConfig, metrics *Metrics, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		defaults: defaults,
		logger:   logger.With(slog.String("handler", "analyze")),
		validate: validator.New(),
		metrics:  metrics,
	}
}

// Analyze handles POST /api/analyze.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req AnalyzeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.metrics.observeAnalysis("bad_request", 0, 0, time.Since(start).Seconds())
		renderProblem(w, r, http.StatusBadRequest, "Invalid Request Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.metrics.observeAnalysis("bad_request", 0, 0, time.Since(start).Seconds())
		renderProblem(w, r, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	options := h.defaults
	if req.Options != nil {
		options = *req.Options
	}
	engineCfg, err := options.ToAnalysisConfig()
	if err != nil {
		h.metrics.observeAnalysis("bad_request", 0, 0, time.Since(start).Seconds())
		renderProblem(w, r, http.StatusBadRequest, "Invalid Analysis Options", err.Error())
		return
	}

	aggregator, err := population.NewAggregator(engineCfg, h.logger)
	if err != nil {
		h.metrics.observeAnalysis("bad_request", 0, 0, time.Since(start).Seconds())
		renderProblem(w, r, http.StatusBadRequest, "Invalid Analysis Options", err.Error())
		return
	}
	if options.Concurrency > 0 {
		aggregator.SetConcurrency(options.Concurrency)
	}

	h.logger.InfoContext(ctx, "analysis requested",
		"n_subjects", len(req.Subjects),
		"covariate_analysis", engineCfg.PerformCovariateAnalysis,
	)

	results, err := aggregator.AnalyzePopulation(ctx, req.Subjects)
	if err != nil {
		h.metrics.observeAnalysis("error", 0, 0, time.Since(start).Seconds())
		h.logger.ErrorContext(ctx, "analysis failed", "error", err)
		renderProblem(w, r, http.StatusInternalServerError, "Analysis Failed", err.Error())
		return
	}

	elapsed := time.Since(start)
	h.metrics.observeAnalysis("ok", len(results.IndividualResults), len(results.FailedSubjects), elapsed.Seconds())

	render.JSON(w, r, AnalyzeResponse{
		RequestID: middleware.GetRequestID(ctx),
		Elapsed:   elapsed.String(),
		Results:   results,
	})
}

// problem is an RFC 7807 error body.
type problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

func renderProblem(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	render.Status(r, status)
	render.JSON(w, r, problem{
		Type:      "/errors/" + strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "-"),
		Title:     title,
		Status:    status,
		Detail:    detail,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
