package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fitmatch/insights/pkg/httputil"
	"github.com/fitmatch/insights/pkg/observability"
	"github.com/fitmatch/insights/pkg/statistics"
)

// DefaultRetentionDays is the lookback of /statistics/retention when no
// days parameter is given
const DefaultRetentionDays = 30

// StatisticsHandlers provides the admin dashboard statistics endpoints
type StatisticsHandlers struct {
	service *statistics.Service
}

// NewStatisticsHandlers creates a new statistics handlers instance
func NewStatisticsHandlers(service *statistics.Service) *StatisticsHandlers {
	return &StatisticsHandlers{
		service: service,
	}
}

// RegisterRoutes registers statistics API routes on r
func (h *StatisticsHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/statistics", h.getStatistics).Methods("GET")

	r.HandleFunc("/statistics/overview", windowed(h.service.GetOverview)).Methods("GET")
	r.HandleFunc("/statistics/users", windowed(h.service.GetUserAnalytics)).Methods("GET")
	r.HandleFunc("/statistics/trainers", windowed(h.service.GetPTAnalytics)).Methods("GET")
	r.HandleFunc("/statistics/health", windowed(h.service.GetHealthAnalytics)).Methods("GET")
	r.HandleFunc("/statistics/goals", windowed(h.service.GetGoalsAnalytics)).Methods("GET")
	r.HandleFunc("/statistics/workouts", windowed(h.service.GetWorkoutAnalytics)).Methods("GET")
	r.HandleFunc("/statistics/nutrition", windowed(h.service.GetNutritionAnalytics)).Methods("GET")
	r.HandleFunc("/statistics/finance", windowed(h.service.GetFinanceAnalytics)).Methods("GET")
	r.HandleFunc("/statistics/system", windowed(h.service.GetSystemAnalytics)).Methods("GET")
	r.HandleFunc("/statistics/behavior", windowed(h.service.GetBehaviorAnalytics)).Methods("GET")

	r.HandleFunc("/statistics/recent-activities", h.getRecentActivities).Methods("GET")
	r.HandleFunc("/statistics/retention", h.getRetention).Methods("GET")
}

// getStatistics handles GET /api/v1/statistics
// Returns the composite dashboard report
// Query params:
//   - from, to: optional YYYY-MM-DD bounds; both absent means all time
func (h *StatisticsHandlers) getStatistics(w http.ResponseWriter, r *http.Request) {
	windowed(h.service.GetStatisticsData)(w, r)
}

// windowed adapts a date-ranged report method to an http.HandlerFunc
func windowed[T any](report func(ctx context.Context, from, to *time.Time) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, ok := httputil.ParseDateRangeOrError(w, r)
		if !ok {
			return
		}

		result, err := report(r.Context(), from, to)
		if err != nil {
			writeReportError(w, r, err)
			return
		}
		_ = httputil.WriteSuccess(w, result)
	}
}

// getRecentActivities handles GET /api/v1/statistics/recent-activities
// Query params:
//   - limit: number of entries, at most 100; absent or non-positive means 20
func (h *StatisticsHandlers) getRecentActivities(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", statistics.DefaultFeedLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	feed, err := h.service.GetRecentActivities(r.Context(), limit)
	if err != nil {
		writeReportError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, feed)
}

// RetentionResponse is the body of GET /api/v1/statistics/retention
type RetentionResponse struct {
	Days int     `json:"days"`
	Rate float64 `json:"rate"`
}

// getRetention handles GET /api/v1/statistics/retention
// Query params:
//   - days: lookback in days (1-365) - default: 30
func (h *StatisticsHandlers) getRetention(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.ParseQueryInt(r, "days", DefaultRetentionDays)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if days < 1 || days > 365 {
		httputil.WriteBadRequest(w, fmt.Sprintf("days must be between 1 and 365, got %d", days))
		return
	}

	rate, err := h.service.GetRetention(r.Context(), days)
	if err != nil {
		writeReportError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, RetentionResponse{Days: days, Rate: rate})
}

// writeReportError logs the underlying failure and replies with a 500 that
// does not leak query details
func writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(r.Context()).
		WithError(err).
		WithField("path", r.URL.Path).
		Error("failed to compute statistics")
	httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to compute statistics")
}
